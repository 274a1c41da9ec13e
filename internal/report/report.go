// Package report renders comparison results for people.
package report

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"

	"chdiff/internal/chdiff"
	"chdiff/internal/manifest"
)

// PatchContext is the number of unchanged manifest lines around each hunk.
const PatchContext = 3

// WriteEntries prints one "<tag> <path>" line per entry in path order. When
// parent is set, paths are shown joined to it.
func WriteEntries(w io.Writer, entries []chdiff.DiffEntry, parent string) error {
	for _, e := range entries {
		p := e.Path
		if parent != "" {
			p = path.Join(parent, p)
		}
		if _, err := fmt.Fprintf(w, "%-2s %s\n", e.State.Tag(), p); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummary prints the counts of a finished backup.
func WriteSummary(w io.Writer, s *chdiff.BackupSummary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "snapshot  %s\n", path.Join(s.Target, s.Snapshot))
	if s.Previous != "" {
		fmt.Fprintf(&b, "previous  %s\n", s.Previous)
	}
	fmt.Fprintf(&b, "new       %d (%d modified)\n", s.New, s.Modified)
	fmt.Fprintf(&b, "same      %d\n", s.Unchanged)
	fmt.Fprintf(&b, "deleted   %d\n", s.Deleted)
	if s.Failed > 0 {
		fmt.Fprintf(&b, "failed    %d\n", s.Failed)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteErrors prints one line per collected error.
func WriteErrors(w io.Writer, errs []*chdiff.Error) error {
	for _, e := range errs {
		if _, err := fmt.Fprintf(w, "!  %s\n", e); err != nil {
			return err
		}
	}
	return nil
}

// WritePatch prints a unified diff between the encoded forms of two
// manifests. Nothing is written when they are equal.
func WritePatch(w io.Writer, name string, stored, fresh *chdiff.Manifest) error {
	a, err := encodeLines(stored)
	if err != nil {
		return err
	}
	b, err := encodeLines(fresh)
	if err != nil {
		return err
	}

	return difflib.WriteUnifiedDiff(w, difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: name + " (stored)",
		ToFile:   name + " (current)",
		Context:  PatchContext,
	})
}

func encodeLines(m *chdiff.Manifest) ([]string, error) {
	var buf bytes.Buffer
	if err := manifest.Encode(&buf, m); err != nil {
		return nil, err
	}
	lines := strings.SplitAfter(buf.String(), "\n")
	// Encode terminates every line, so the last element is always empty.
	return lines[:len(lines)-1], nil
}
