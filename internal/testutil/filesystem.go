package testutil

import "chdiff/internal/chdiff"

// HookedFS wraps a FilesystemManager and runs optional hooks before copies
// and moves. A hook returning an error fails the operation without touching
// the filesystem.
type HookedFS struct {
	chdiff.FilesystemManager

	BeforeCopy func(src, dst string) error
	BeforeMove func(src, dst string) error
}

func (h *HookedFS) CopyFile(src, dst string) error {
	if h.BeforeCopy != nil {
		if err := h.BeforeCopy(src, dst); err != nil {
			return err
		}
	}
	return h.FilesystemManager.CopyFile(src, dst)
}

func (h *HookedFS) MoveFile(src, dst string) error {
	if h.BeforeMove != nil {
		if err := h.BeforeMove(src, dst); err != nil {
			return err
		}
	}
	return h.FilesystemManager.MoveFile(src, dst)
}
