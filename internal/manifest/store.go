package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"chdiff/internal/chdiff"
)

// FileStore keeps manifests as files inside the directories they describe.
type FileStore struct{}

// NewFileStore creates a manifest file store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Path returns the manifest location for method inside dir.
func Path(dir string, method chdiff.Method) string {
	return filepath.Join(dir, method.ManifestName())
}

// Load reads the manifest for method from dir.
func (s *FileStore) Load(dir string, method chdiff.Method) (*chdiff.Manifest, error) {
	p := Path(dir, method)
	f, err := os.Open(p)
	if err != nil {
		return nil, chdiff.Classify("load manifest", p, err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		var ce *chdiff.Error
		if errors.As(err, &ce) {
			return nil, chdiff.NewError(ce.Kind, "load manifest", p, ce.Err)
		}
		return nil, chdiff.Classify("load manifest", p, err)
	}
	return m, nil
}

// Exists reports whether dir holds a manifest for method.
func (s *FileStore) Exists(dir string, method chdiff.Method) (bool, error) {
	info, err := os.Stat(Path(dir, method))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, chdiff.Classify("stat manifest", Path(dir, method), err)
	}
	return info.Mode().IsRegular(), nil
}

// Save writes the manifest using atomic write (temp file + rename), so a
// reader never observes a half-written manifest.
func (s *FileStore) Save(dir string, method chdiff.Method, m *chdiff.Manifest) error {
	destPath := Path(dir, method)

	// Create temp file in the same directory to ensure atomic rename works.
	// The name matches the manifest pattern so scans never pick it up.
	tmpFile, err := os.CreateTemp(dir, "chdiff.tmp-*.txt")
	if err != nil {
		return chdiff.Classify("save manifest", destPath, fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := Encode(tmpFile, m); err != nil {
		tmpFile.Close()
		return err
	}

	if err := tmpFile.Chmod(0644); err != nil {
		tmpFile.Close()
		return chdiff.Classify("save manifest", destPath, err)
	}

	if err := tmpFile.Close(); err != nil {
		return chdiff.Classify("save manifest", destPath, fmt.Errorf("failed to close temp file: %w", err))
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return chdiff.Classify("save manifest", destPath, fmt.Errorf("failed to rename temp file: %w", err))
	}

	success = true
	return nil
}

// Compile-time check that FileStore implements chdiff.ManifestStore
var _ chdiff.ManifestStore = (*FileStore)(nil)
