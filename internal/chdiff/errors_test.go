package chdiff_test

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"chdiff/internal/chdiff"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not exist", fs.ErrNotExist, chdiff.ErrNotFound},
		{"wrapped not exist", fmt.Errorf("open: %w", fs.ErrNotExist), chdiff.ErrNotFound},
		{"permission", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, chdiff.ErrPermissionDenied},
		{"exists", fs.ErrExist, chdiff.ErrNameCollision},
		{"other", errors.New("disk on fire"), chdiff.ErrIO},
		{"already classified", chdiff.Errorf(chdiff.KindFormat, "decode", "m", "bad"), chdiff.ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chdiff.Classify("op", "path", tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("Classify() = %v, want kind of %v", got, tt.want)
			}
		})
	}

	if chdiff.Classify("op", "p", nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestError_Message(t *testing.T) {
	err := chdiff.NewError(chdiff.KindNotFound, "load manifest", "/data", fs.ErrNotExist)
	want := "load manifest: not found: /data: file does not exist"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("Error should unwrap to its cause")
	}
	if errors.Is(err, chdiff.ErrIO) {
		t.Error("kinds must not match each other")
	}
}

func TestClassify_KeepsKindAndFillsOp(t *testing.T) {
	inner := chdiff.NewError(chdiff.KindPermissionDenied, "", "/x", fs.ErrPermission)
	got := chdiff.Classify("scan", "/y", fmt.Errorf("wrapped: %w", inner))
	if got.Kind != chdiff.KindPermissionDenied || got.Op != "scan" || got.Path != "/x" {
		t.Errorf("Classify() = %+v", got)
	}
	if chdiff.KindOf(got) != chdiff.KindPermissionDenied {
		t.Errorf("KindOf() = %v", chdiff.KindOf(got))
	}
}
