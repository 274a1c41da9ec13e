package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"chdiff/internal/chdiff"
)

const copyBufferSize = 1 << 20

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct {
	ignore *IgnoreMatcher
}

// NewOSFilesystemManager creates a new filesystem manager that operates on the
// real filesystem. Paths matching ignorePatterns are hidden from walks.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: NewIgnoreMatcher(ignorePatterns)}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*chdiff.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return chdiff.NewPath(absPath, info.IsDir(), info), nil
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// ReadDir lists a directory sorted by name.
func (m *OSFilesystemManager) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

// IsIgnored reports whether a root-relative path matches an ignore pattern.
func (m *OSFilesystemManager) IsIgnored(relativePath string) bool {
	return m.ignore.Match(relativePath)
}

// WalkFiles visits regular files below root in lexical order. Symlinks,
// devices, pipes and sockets are skipped silently. An unreadable directory is
// reported once and its subtree is skipped.
func (m *OSFilesystemManager) WalkFiles(root string, fn chdiff.WalkFunc) error {
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if err != nil {
			if rel == "." {
				return err
			}
			if cbErr := fn(rel, nil, err); cbErr != nil {
				return cbErr
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if rel == "." {
			return nil
		}
		if m.ignore.Match(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fn(rel, nil, fmt.Errorf("stat %s: %w", p, err))
		}
		return fn(rel, info, nil)
	})
}

// MkdirAll creates a directory and any missing parents.
func (m *OSFilesystemManager) MkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

// CopyFile copies src to a new file dst and carries over the permission bits
// and the access and modification times of src.
func (m *OSFilesystemManager) CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(dst)
		}
	}()

	if _, err = io.CopyBuffer(out, in, make([]byte, copyBufferSize)); err != nil {
		return fmt.Errorf("copying content: %w", err)
	}
	// The umask may have narrowed the mode at creation.
	if err = out.Chmod(info.Mode().Perm()); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("closing destination: %w", err)
	}
	if err = os.Chtimes(dst, accessTime(info), info.ModTime()); err != nil {
		return fmt.Errorf("setting times: %w", err)
	}
	return nil
}

// MoveFile moves src to dst and never replaces an existing dst: the file is
// hard linked at dst, which fails if dst exists, and then unlinked from src.
// Where a hard link is not possible (another device, or a filesystem without
// links) it falls back to an exclusive copy followed by removing src.
func (m *OSFilesystemManager) MoveFile(src, dst string) error {
	err := os.Link(src, dst)
	switch {
	case err == nil:
		return os.Remove(src)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("moving %s: %w", dst, fs.ErrExist)
	case errors.Is(err, fs.ErrNotExist):
		return err
	}
	if err := m.CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// ListDirs returns the names of the subdirectories of path, sorted.
func ListDirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// Compile-time check that OSFilesystemManager implements chdiff.FilesystemManager interface
var _ chdiff.FilesystemManager = (*OSFilesystemManager)(nil)
