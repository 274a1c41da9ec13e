// Package manifest encodes manifests to and from the on-disk text format:
//
//	<checksum> *./<relative-path>
//
// one entry per line, sorted by path.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"strings"

	"chdiff/internal/chdiff"
)

// Separator splits the checksum from the path on every line.
const Separator = " *./"

// Encode writes m to w, one line per entry in path order.
func Encode(w io.Writer, m *chdiff.Manifest) error {
	bw := bufio.NewWriter(w)
	for p, sum := range m.All() {
		if strings.ContainsAny(p, "\n\r") {
			return chdiff.Errorf(chdiff.KindFormat, "encode manifest", p, "path contains a line break")
		}
		if _, err := fmt.Fprintf(bw, "%s%s%s\n", sum, Separator, p); err != nil {
			return chdiff.Classify("encode manifest", "", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return chdiff.Classify("encode manifest", "", err)
	}
	return nil
}

// Decode parses a manifest from r. Blank lines are skipped and a trailing
// carriage return is tolerated. Lines without the separator, empty
// checksums, duplicate paths and paths that would escape the root all fail
// with a KindFormat error naming the line.
func Decode(r io.Reader) (*chdiff.Manifest, error) {
	m := chdiff.NewManifest()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		sum, p, ok := strings.Cut(line, Separator)
		if !ok {
			return nil, formatErr(lineNo, "missing %q separator", Separator)
		}
		if sum == "" {
			return nil, formatErr(lineNo, "empty checksum")
		}
		if err := ValidatePath(p); err != nil {
			return nil, formatErr(lineNo, "%v", err)
		}
		if _, dup := m.Get(p); dup {
			return nil, formatErr(lineNo, "duplicate path %q", p)
		}
		m.Set(p, sum)
	}
	if err := scanner.Err(); err != nil {
		return nil, chdiff.Classify("decode manifest", "", err)
	}
	return m, nil
}

// ValidatePath checks that p is a clean, relative, slash-separated path
// that stays inside the manifest root.
func ValidatePath(p string) error {
	switch {
	case p == "":
		return fmt.Errorf("empty path")
	case strings.HasPrefix(p, "/"):
		return fmt.Errorf("absolute path %q", p)
	case p == ".":
		return fmt.Errorf("path %q names the root", p)
	case path.Clean(p) != p:
		return fmt.Errorf("path %q is not clean", p)
	case p == ".." || strings.HasPrefix(p, "../"):
		return fmt.Errorf("path %q escapes the root", p)
	}
	return nil
}

func formatErr(lineNo int, format string, args ...any) error {
	return chdiff.Errorf(chdiff.KindFormat, "decode manifest", "", "line %d: "+format, append([]any{lineNo}, args...)...)
}
