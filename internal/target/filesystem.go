package target

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"chdiff/internal/chdiff"
	chfs "chdiff/internal/fs"
)

// FileSystemTarget is a filesystem-based implementation of the BackupTarget
// interface. Snapshots are plain directories below the target root:
//
//	<destination>/<source name>/
//	  20240102-030405/   (a complete copy of the source tree)
//	    chdiff.sha256.txt
//	  20240103-101112/
type FileSystemTarget struct {
	root string
}

// NewFileSystemTarget opens the target rooted at root, creating it if needed.
func NewFileSystemTarget(root string) (*FileSystemTarget, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create target directory: %w", err)
	}
	t := &FileSystemTarget{root: root}
	if err := t.ValidateSetup(); err != nil {
		return nil, err
	}
	return t, nil
}

// Root returns the absolute path of the target directory.
func (t *FileSystemTarget) Root() string {
	return t.root
}

// Entries lists all subdirectory names of the target, sorted ascending.
func (t *FileSystemTarget) Entries() ([]string, error) {
	names, err := chfs.ListDirs(t.root)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return names, nil
}

// SnapshotPath returns the path of the named snapshot.
func (t *FileSystemTarget) SnapshotPath(name string) string {
	return filepath.Join(t.root, name)
}

// CreateSnapshot creates the snapshot directory. It never reuses an existing
// directory.
func (t *FileSystemTarget) CreateSnapshot(name string) (string, error) {
	dir := t.SnapshotPath(name)
	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", chdiff.NewError(chdiff.KindNameCollision, "create snapshot", dir, err)
		}
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return dir, nil
}

// ValidateSetup verifies that the target root is an accessible directory.
func (t *FileSystemTarget) ValidateSetup() error {
	info, err := os.Stat(t.root)
	if err != nil {
		return fmt.Errorf("target root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("target root is not a directory: %s", t.root)
	}
	return nil
}

// Opener places targets below a destination root, one per source name.
type Opener struct{}

// NewOpener creates an Opener.
func NewOpener() *Opener {
	return &Opener{}
}

// OpenTarget returns the target destinationRoot/sourceName.
func (o *Opener) OpenTarget(destinationRoot, sourceName string) (chdiff.BackupTarget, error) {
	if sourceName == "" || sourceName == "." || sourceName == string(filepath.Separator) {
		return nil, chdiff.Errorf(chdiff.KindInvalidArgument, "open target", destinationRoot,
			"cannot derive a target name from %q", sourceName)
	}
	return NewFileSystemTarget(filepath.Join(destinationRoot, sourceName))
}

var (
	_ chdiff.BackupTarget = (*FileSystemTarget)(nil)
	_ chdiff.TargetOpener = (*Opener)(nil)
)
