package chdiff

import (
	"iter"
	"maps"
	"slices"
)

// Manifest maps relative slash-separated file paths to checksums.
// Iteration through Paths and All is always in byte-wise path order so that
// encoding and diffing are deterministic.
type Manifest struct {
	entries map[string]string
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{entries: make(map[string]string)}
}

// ManifestOf builds a manifest from a plain map. Mostly useful in tests.
func ManifestOf(entries map[string]string) *Manifest {
	m := NewManifest()
	for p, sum := range entries {
		m.Set(p, sum)
	}
	return m
}

// Set records the checksum for a path, replacing any earlier value.
func (m *Manifest) Set(path, checksum string) {
	if m.entries == nil {
		m.entries = make(map[string]string)
	}
	m.entries[path] = checksum
}

// Get returns the checksum for a path.
func (m *Manifest) Get(path string) (string, bool) {
	if m == nil {
		return "", false
	}
	sum, ok := m.entries[path]
	return sum, ok
}

// Delete removes a path.
func (m *Manifest) Delete(path string) {
	if m != nil {
		delete(m.entries, path)
	}
}

// Len returns the number of entries. A nil manifest is empty.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Paths returns all paths sorted byte-wise.
func (m *Manifest) Paths() []string {
	if m == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(m.entries))
}

// All iterates over path/checksum pairs in path order.
func (m *Manifest) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, p := range m.Paths() {
			if !yield(p, m.entries[p]) {
				return
			}
		}
	}
}

// Equal reports whether both manifests hold the same entries.
func (m *Manifest) Equal(other *Manifest) bool {
	if m.Len() != other.Len() {
		return false
	}
	for p, sum := range m.All() {
		if o, ok := other.Get(p); !ok || o != sum {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (m *Manifest) Clone() *Manifest {
	c := NewManifest()
	for p, sum := range m.All() {
		c.Set(p, sum)
	}
	return c
}
