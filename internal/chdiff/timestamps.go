package chdiff

import (
	"io/fs"
	"iter"
	"path"
	"path/filepath"
	"time"
)

// TimePair holds the modification times of one file present in two trees.
type TimePair struct {
	Path  string
	Left  time.Time
	Right time.Time
}

// TimestampPairs walks the files common to left and right: same relative
// path, regular file on both sides. It recurses only into directories present
// on both sides. Manifest files and ignored paths are skipped at every depth.
//
// The sequence is lazy and restartable; each iteration walks the trees anew.
// Unreadable directories or files are yielded as errors and the walk
// continues with the remaining entries.
func TimestampPairs(fsmgr FilesystemManager, left, right string) iter.Seq2[TimePair, error] {
	return func(yield func(TimePair, error) bool) {
		walkCommon(fsmgr, left, right, "", yield)
	}
}

// CollectTimestampPairs drains TimestampPairs, separating pairs from errors.
func CollectTimestampPairs(fsmgr FilesystemManager, left, right string) ([]TimePair, []error) {
	var pairs []TimePair
	var errs []error
	for pair, err := range TimestampPairs(fsmgr, left, right) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pairs = append(pairs, pair)
	}
	return pairs, errs
}

func walkCommon(fsmgr FilesystemManager, left, right, rel string, yield func(TimePair, error) bool) bool {
	leftDir := filepath.Join(left, filepath.FromSlash(rel))
	rightDir := filepath.Join(right, filepath.FromSlash(rel))

	leftEntries, err := fsmgr.ReadDir(leftDir)
	if err != nil {
		return yield(TimePair{}, Classify("compare timestamps", leftDir, err))
	}
	rightEntries, err := fsmgr.ReadDir(rightDir)
	if err != nil {
		return yield(TimePair{}, Classify("compare timestamps", rightDir, err))
	}

	rightByName := make(map[string]fs.DirEntry, len(rightEntries))
	for _, e := range rightEntries {
		rightByName[e.Name()] = e
	}

	var subdirs []string
	for _, le := range leftEntries {
		re, ok := rightByName[le.Name()]
		if !ok {
			continue
		}
		childRel := path.Join(rel, le.Name())
		if fsmgr.IsIgnored(childRel) {
			continue
		}
		switch {
		case le.IsDir() && re.IsDir():
			subdirs = append(subdirs, childRel)
		case le.Type().IsRegular() && re.Type().IsRegular():
			if IsManifestName(childRel) {
				continue
			}
			pair, err := timePair(le, re, childRel)
			if err != nil {
				err = Classify("compare timestamps", childRel, err)
			}
			if !yield(pair, err) {
				return false
			}
		}
	}

	for _, sub := range subdirs {
		if !walkCommon(fsmgr, left, right, sub, yield) {
			return false
		}
	}
	return true
}

func timePair(le, re fs.DirEntry, rel string) (TimePair, error) {
	li, err := le.Info()
	if err != nil {
		return TimePair{}, err
	}
	ri, err := re.Info()
	if err != nil {
		return TimePair{}, err
	}
	return TimePair{Path: rel, Left: li.ModTime(), Right: ri.ModTime()}, nil
}
