package chdiff

// BackupTarget is the container directory holding the snapshot history of
// one source tree.
type BackupTarget interface {
	// Root returns the absolute path of the target directory.
	Root() string

	// Entries lists the names of all subdirectories, sorted ascending.
	// This includes partial snapshots and stray directories.
	Entries() ([]string, error)

	// SnapshotPath returns the absolute path of a snapshot directory.
	SnapshotPath(name string) string

	// CreateSnapshot creates the snapshot directory exclusively. If the
	// name is already taken it fails with a KindNameCollision error.
	CreateSnapshot(name string) (string, error)
}

// TargetOpener resolves or creates the BackupTarget for a source name
// inside a destination root.
type TargetOpener interface {
	OpenTarget(destinationRoot, sourceName string) (BackupTarget, error)
}
