package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chdiff/internal/chdiff"
)

func TestWriteEntries(t *testing.T) {
	entries := []chdiff.DiffEntry{
		{Path: "a.txt", State: chdiff.Modified},
		{Path: "b/c.txt", State: chdiff.MissingFromSource},
		{Path: "d.txt", State: chdiff.Modified | chdiff.NewerInTarget},
		{Path: "e.txt", State: chdiff.OlderInTarget},
	}

	t.Run("without parent", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteEntries(&buf, entries, ""))
		assert.Equal(t, "*  a.txt\n+  b/c.txt\n<* d.txt\n>  e.txt\n", buf.String())
	})

	t.Run("with parent", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteEntries(&buf, entries[:1], "/data/photos"))
		assert.Equal(t, "*  /data/photos/a.txt\n", buf.String())
	})
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSummary(&buf, &chdiff.BackupSummary{
		Target:    "/dest/src",
		Snapshot:  "20240102-030405",
		Previous:  "20240101-000000",
		New:       3,
		Modified:  1,
		Unchanged: 7,
		Deleted:   2,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "snapshot  /dest/src/20240102-030405\n")
	assert.Contains(t, out, "previous  20240101-000000\n")
	assert.Contains(t, out, "new       3 (1 modified)\n")
	assert.Contains(t, out, "same      7\n")
	assert.Contains(t, out, "deleted   2\n")
	assert.NotContains(t, out, "failed")
}

func TestWriteErrors(t *testing.T) {
	var buf bytes.Buffer
	errs := []*chdiff.Error{chdiff.Errorf(chdiff.KindPermissionDenied, "digest", "secret.txt", "open failed")}
	require.NoError(t, WriteErrors(&buf, errs))
	assert.Equal(t, "!  digest: permission denied: secret.txt: open failed\n", buf.String())
}

func TestWritePatch(t *testing.T) {
	stored := chdiff.ManifestOf(map[string]string{"a": "1", "b": "2", "c": "3"})

	t.Run("equal manifests print nothing", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WritePatch(&buf, "chdiff.sha256.txt", stored, stored.Clone()))
		assert.Empty(t, buf.String())
	})

	t.Run("changed entry", func(t *testing.T) {
		fresh := stored.Clone()
		fresh.Set("b", "9")
		fresh.Delete("c")

		var buf bytes.Buffer
		require.NoError(t, WritePatch(&buf, "chdiff.sha256.txt", stored, fresh))
		out := buf.String()

		assert.True(t, strings.HasPrefix(out, "--- chdiff.sha256.txt (stored)\n+++ chdiff.sha256.txt (current)\n"), out)
		assert.Contains(t, out, "-2 *./b\n")
		assert.Contains(t, out, "+9 *./b\n")
		assert.Contains(t, out, "-3 *./c\n")
		assert.Contains(t, out, " 1 *./a\n")
	})
}
