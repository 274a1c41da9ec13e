package chdiff

import (
	"slices"
	"strings"
)

// State is a set of classifications for one path. A path can carry one
// checksum state and one timestamp state at the same time.
type State uint8

const (
	Unchanged State = 1 << iota
	Modified
	MissingFromTarget
	MissingFromSource
	NewerInTarget
	OlderInTarget
)

const (
	checksumStates  = Unchanged | Modified | MissingFromTarget | MissingFromSource
	timestampStates = NewerInTarget | OlderInTarget
)

// Has reports whether all bits of s2 are set in s.
func (s State) Has(s2 State) bool { return s&s2 == s2 }

// Tag renders the state as the short report tag. Timestamp tags come first,
// so a modified file that is newer in the target renders as "<*".
func (s State) Tag() string {
	var b strings.Builder
	if s.Has(NewerInTarget) {
		b.WriteString("<")
	}
	if s.Has(OlderInTarget) {
		b.WriteString(">")
	}
	switch {
	case s.Has(Unchanged):
		b.WriteString("=")
	case s.Has(Modified):
		b.WriteString("*")
	case s.Has(MissingFromTarget):
		b.WriteString("-")
	case s.Has(MissingFromSource):
		b.WriteString("+")
	}
	return b.String()
}

func (s State) String() string {
	var names []string
	for _, st := range []struct {
		s    State
		name string
	}{
		{Unchanged, "unchanged"},
		{Modified, "modified"},
		{MissingFromTarget, "missing-from-target"},
		{MissingFromSource, "missing-from-source"},
		{NewerInTarget, "newer-in-target"},
		{OlderInTarget, "older-in-target"},
	} {
		if s.Has(st.s) {
			names = append(names, st.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

// DiffEntry is one classified path.
type DiffEntry struct {
	Path  string
	State State
}

// DiffResult holds classified entries keyed by path.
type DiffResult struct {
	entries map[string]State
}

func newDiffResult() *DiffResult {
	return &DiffResult{entries: make(map[string]State)}
}

// Len returns the number of classified paths.
func (r *DiffResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// State returns the state recorded for a path.
func (r *DiffResult) State(path string) (State, bool) {
	if r == nil {
		return 0, false
	}
	s, ok := r.entries[path]
	return s, ok
}

// Entries returns all entries sorted by path.
func (r *DiffResult) Entries() []DiffEntry {
	if r == nil {
		return nil
	}
	out := make([]DiffEntry, 0, len(r.entries))
	for p, s := range r.entries {
		out = append(out, DiffEntry{Path: p, State: s})
	}
	slices.SortFunc(out, func(a, b DiffEntry) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// Differences counts entries that are not plain Unchanged.
func (r *DiffResult) Differences() int {
	n := 0
	for _, s := range r.entries {
		if s != Unchanged {
			n++
		}
	}
	return n
}

func (r *DiffResult) add(path string, s State) {
	r.entries[path] |= s
}

// DiffOptions tune Diff.
type DiffOptions struct {
	// IncludeUnchanged records paths with equal checksums as Unchanged
	// instead of omitting them. The backup engine needs these.
	IncludeUnchanged bool
}

// Diff classifies every path of source and target. It performs no I/O.
//
//   - in both, equal checksum: omitted, or Unchanged with IncludeUnchanged
//   - in both, different checksum: Modified
//   - only in source: MissingFromTarget
//   - only in target: MissingFromSource
func Diff(source, target *Manifest, opts DiffOptions) *DiffResult {
	result := newDiffResult()
	for p, sum := range source.All() {
		other, ok := target.Get(p)
		switch {
		case !ok:
			result.add(p, MissingFromTarget)
		case other != sum:
			result.add(p, Modified)
		case opts.IncludeUnchanged:
			result.add(p, Unchanged)
		}
	}
	for p := range target.All() {
		if _, ok := source.Get(p); !ok {
			result.add(p, MissingFromSource)
		}
	}
	return result
}

// MergeTimestamps folds modification-time differences into a checksum diff.
// Paths already classified get the timestamp state added to their entry.
// Timestamp-only differences are added only when includeTimestampOnly is
// set. Unchanged entries that gain a timestamp state count as timestamp-only.
func MergeTimestamps(result *DiffResult, pairs []TimePair, includeTimestampOnly bool) {
	for _, pair := range pairs {
		var s State
		switch {
		case pair.Left.Before(pair.Right):
			s = NewerInTarget
		case pair.Left.After(pair.Right):
			s = OlderInTarget
		default:
			continue
		}
		existing, ok := result.entries[pair.Path]
		if ok && existing&checksumStates != Unchanged {
			result.entries[pair.Path] = existing&^timestampStates | s
			continue
		}
		if includeTimestampOnly {
			result.entries[pair.Path] = existing&^(timestampStates|Unchanged) | s
		}
	}
}
