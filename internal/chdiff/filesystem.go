package chdiff

import (
	"io/fs"
)

// WalkFunc receives one regular file per call, as a slash-separated path
// relative to the walk root. When err is non-nil the walk could not read
// relativePath (a file or a directory); the walk continues with siblings.
type WalkFunc func(relativePath string, info fs.FileInfo, err error) error

// FilesystemManager provides the filesystem operations the engine needs.
// It abstracts file access so ignore rules and platform details live in one
// place.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path and stats it.
	Resolve(rawPath string) (*Path, error)

	// Stat returns fresh file info for a path.
	Stat(path string) (fs.FileInfo, error)

	// ReadDir lists a directory sorted by name.
	ReadDir(path string) ([]fs.DirEntry, error)

	// WalkFiles visits every regular, non-ignored file below root in
	// lexical order. Unreadable entries are reported through fn and do not
	// stop the walk. Returning an error from fn aborts the walk with it.
	WalkFiles(root string, fn WalkFunc) error

	// IsIgnored reports whether a root-relative path matches the configured
	// ignore patterns.
	IsIgnored(relativePath string) bool

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string) error

	// CopyFile copies src to dst, creating dst fresh and preserving the
	// permission bits and access/modification times of src.
	CopyFile(src, dst string) error

	// MoveFile relocates src to dst, preserving content and metadata.
	MoveFile(src, dst string) error
}
