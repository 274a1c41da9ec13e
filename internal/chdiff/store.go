package chdiff

// ManifestStore loads and saves the manifest file kept inside a directory.
type ManifestStore interface {
	// Load reads the manifest for method from dir. A missing file is a
	// KindNotFound error and a corrupt one a KindFormat error.
	Load(dir string, method Method) (*Manifest, error)

	// Save writes the manifest for method into dir, replacing any previous
	// version atomically.
	Save(dir string, method Method, m *Manifest) error

	// Exists reports whether dir holds a manifest for method.
	Exists(dir string, method Method) (bool, error)
}
