package chdiff_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chdiff/internal/chdiff"
	"chdiff/internal/digest"
	chfs "chdiff/internal/fs"
	"chdiff/internal/testutil"
)

func newScanner(t *testing.T, method chdiff.Method, ignore ...string) (*chdiff.Scanner, *testutil.RecordingLogger) {
	t.Helper()
	d, err := digest.New(method, nil)
	require.NoError(t, err)
	logger := &testutil.RecordingLogger{}
	return chdiff.NewScanner(chfs.NewOSFilesystemManager(ignore), d, logger, 4), logger
}

func TestScanner_Scan(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"a.txt":                   "alpha",
		"sub/b.txt":               "beta",
		"sub/deeper/c.txt":        "gamma",
		"chdiff.sha256.txt":       "stale manifest",
		"sub/chdiff.md5.txt":      "nested manifest",
		"sub/deeper/chdiff.x.txt": "any method",
	})

	scanner, _ := newScanner(t, chdiff.MethodSHA256)
	result, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{"a.txt", "sub/b.txt", "sub/deeper/c.txt"}, result.Manifest.Paths())
	sum, _ := result.Manifest.Get("sub/b.txt")
	assert.Equal(t, testutil.SHA256Of("beta"), sum)
}

func TestScanner_IgnorePatterns(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"keep.txt":        "1",
		"skip.tmp":        "2",
		"cache/data.bin":  "3",
		"sub/cache.txt":   "4",
		"sub/build/out.o": "5",
	})

	scanner, _ := newScanner(t, chdiff.MethodSize, "*.tmp", "cache", "sub/build")
	result, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt", "sub/cache.txt"}, result.Manifest.Paths())
}

func TestScanner_UnreadableFileIsCollected(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"ok.txt": "fine", "locked.txt": "secret"})
	locked := filepath.Join(root, "locked.txt")
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { os.Chmod(locked, 0644) })

	scanner, logger := newScanner(t, chdiff.MethodSHA256)
	result, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"ok.txt"}, result.Manifest.Paths())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "locked.txt", result.Errors[0].Path)
	assert.ErrorIs(t, result.Errors[0], chdiff.ErrPermissionDenied)
	assert.True(t, logger.HasMessage("WARN", "skipping unreadable entry"))
}

func TestScanner_InvalidRoot(t *testing.T) {
	root := t.TempDir()
	file := testutil.WriteFile(t, root, "file.txt", "x")
	scanner, _ := newScanner(t, chdiff.MethodSHA256)

	_, err := scanner.Scan(context.Background(), filepath.Join(root, "absent"))
	assert.ErrorIs(t, err, chdiff.ErrNotFound)

	_, err = scanner.Scan(context.Background(), file)
	assert.ErrorIs(t, err, chdiff.ErrInvalidArgument)
}

func TestScanner_Deterministic(t *testing.T) {
	root := t.TempDir()
	files := make(map[string]string)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		files[name+"/file.txt"] = name
		files[name+".txt"] = name + name
	}
	testutil.WriteTree(t, root, files)

	scanner, _ := newScanner(t, chdiff.MethodXXH3)
	first, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)
	second, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, len(files), first.Manifest.Len())
	assert.True(t, first.Manifest.Equal(second.Manifest))
}

func TestScanner_CancelledContext(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"a.txt": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner, _ := newScanner(t, chdiff.MethodSHA256)
	_, err := scanner.Scan(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
