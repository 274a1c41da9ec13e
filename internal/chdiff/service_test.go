package chdiff_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chdiff/internal/chdiff"
	"chdiff/internal/testutil"
)

func TestService_CreateAndVerify(t *testing.T) {
	ctx := context.Background()
	ts := testutil.NewTestService(t, testutil.ServiceConfig{})
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{
		"a.txt":     "alpha",
		"sub/b.txt": "beta",
	})

	created, err := ts.Create(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, created.Files)
	assert.Equal(t, filepath.Join(dir, "chdiff.sha256.txt"), created.ManifestPath)
	assert.True(t, testutil.Exists(dir, "chdiff.sha256.txt"))

	t.Run("unchanged tree verifies", func(t *testing.T) {
		res, err := ts.Verify(ctx, dir)
		require.NoError(t, err)
		assert.True(t, res.OK())
		assert.Equal(t, "OK", res.Message())
	})

	t.Run("modified file is reported", func(t *testing.T) {
		testutil.WriteFile(t, dir, "a.txt", "ALPHA")
		res, err := ts.Verify(ctx, dir)
		require.NoError(t, err)
		assert.False(t, res.OK())
		assert.Equal(t, "1 difference(s) found", res.Message())
		s, ok := res.Diff.State("a.txt")
		require.True(t, ok)
		assert.Equal(t, chdiff.Modified, s)
	})

	t.Run("added and removed files are reported", func(t *testing.T) {
		testutil.WriteFile(t, dir, "a.txt", "alpha")
		testutil.WriteFile(t, dir, "new.txt", "fresh")
		testutil.RemoveFile(t, dir, "sub/b.txt")

		res, err := ts.Verify(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, "2 difference(s) found", res.Message())
		s, _ := res.Diff.State("new.txt")
		assert.Equal(t, chdiff.MissingFromSource, s)
		s, _ = res.Diff.State("sub/b.txt")
		assert.Equal(t, chdiff.MissingFromTarget, s)
	})
}

func TestService_VerifyWithoutManifest(t *testing.T) {
	ts := testutil.NewTestService(t, testutil.ServiceConfig{})
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"a.txt": "alpha"})

	_, err := ts.Verify(context.Background(), dir)
	assert.ErrorIs(t, err, chdiff.ErrNotFound)
}

func TestService_VerifyUsesMethodManifest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{"a.txt": "alpha"})

	sha := testutil.NewTestService(t, testutil.ServiceConfig{Method: chdiff.MethodSHA256})
	_, err := sha.Create(ctx, dir)
	require.NoError(t, err)

	md5 := testutil.NewTestService(t, testutil.ServiceConfig{Method: chdiff.MethodMD5})
	_, err = md5.Verify(ctx, dir)
	assert.ErrorIs(t, err, chdiff.ErrNotFound)
}

func TestService_CreateRejectsFile(t *testing.T) {
	ts := testutil.NewTestService(t, testutil.ServiceConfig{})
	file := testutil.WriteFile(t, t.TempDir(), "f.txt", "x")

	_, err := ts.Create(context.Background(), file)
	assert.ErrorIs(t, err, chdiff.ErrInvalidArgument)
}

func TestService_DiffDirs(t *testing.T) {
	ctx := context.Background()
	ts := testutil.NewTestService(t, testutil.ServiceConfig{})
	left, right := t.TempDir(), t.TempDir()
	testutil.WriteTree(t, left, map[string]string{
		"same.txt":    "same",
		"touched.txt": "same",
		"changed.txt": "old",
		"gone.txt":    "gone",
	})
	testutil.WriteTree(t, right, map[string]string{
		"same.txt":    "same",
		"touched.txt": "same",
		"changed.txt": "new",
		"added.txt":   "added",
	})

	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	for _, name := range []string{"same.txt", "touched.txt", "changed.txt"} {
		testutil.SetModTime(t, left, name, base)
		testutil.SetModTime(t, right, name, base)
	}
	testutil.SetModTime(t, right, "touched.txt", base.Add(time.Minute))
	testutil.SetModTime(t, right, "changed.txt", base.Add(time.Minute))

	t.Run("checksums only", func(t *testing.T) {
		res, err := ts.DiffDirs(ctx, left, right, false)
		require.NoError(t, err)
		assert.Equal(t, map[string]chdiff.State{
			"changed.txt": chdiff.Modified | chdiff.NewerInTarget,
			"gone.txt":    chdiff.MissingFromTarget,
			"added.txt":   chdiff.MissingFromSource,
		}, states(res.Diff))
	})

	t.Run("with timestamps", func(t *testing.T) {
		res, err := ts.DiffDirs(ctx, left, right, true)
		require.NoError(t, err)
		assert.Equal(t, map[string]chdiff.State{
			"changed.txt": chdiff.Modified | chdiff.NewerInTarget,
			"touched.txt": chdiff.NewerInTarget,
			"gone.txt":    chdiff.MissingFromTarget,
			"added.txt":   chdiff.MissingFromSource,
		}, states(res.Diff))
	})

	t.Run("manifests are refreshed in both trees", func(t *testing.T) {
		assert.True(t, testutil.Exists(left, "chdiff.sha256.txt"))
		assert.True(t, testutil.Exists(right, "chdiff.sha256.txt"))
	})
}

func TestService_DiffDirsMissingSide(t *testing.T) {
	ts := testutil.NewTestService(t, testutil.ServiceConfig{})
	left := t.TempDir()

	_, err := ts.DiffDirs(context.Background(), left, filepath.Join(left, "absent"), false)
	assert.ErrorIs(t, err, chdiff.ErrNotFound)
}
