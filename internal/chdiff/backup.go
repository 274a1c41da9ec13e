package chdiff

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// SnapshotLayout formats snapshot directory names. The layout is fixed
// width and zero padded, so lexicographic order equals chronological order
// and the greatest name is the most recent snapshot.
const SnapshotLayout = "20060102-150405"

// SnapshotName formats t in UTC as a snapshot directory name. Local wall
// clock time repeats an hour when daylight saving time ends, UTC never does.
func SnapshotName(t time.Time) string {
	return t.UTC().Format(SnapshotLayout)
}

// IsSnapshotName reports whether name is a well-formed snapshot name.
func IsSnapshotName(name string) bool {
	if len(name) != len(SnapshotLayout) {
		return false
	}
	t, err := time.Parse(SnapshotLayout, name)
	return err == nil && SnapshotName(t) == name
}

// BackupOptions tune Backup.
type BackupOptions struct {
	// Full copies every file from source and leaves the previous snapshot
	// untouched.
	Full bool
}

// BackupSummary reports the outcome of one backup run. Counts reflect only
// operations that completed.
type BackupSummary struct {
	Source   string
	Target   string
	Snapshot string
	Previous string

	// New counts files copied from source, including modified ones.
	New int
	// Modified counts the subset of New that replaced an older version.
	Modified  int
	Unchanged int
	Deleted   int
	Failed    int

	Errors []*Error
}

// Partial reports whether anything failed while the backup still produced
// a snapshot.
func (b *BackupSummary) Partial() bool {
	return len(b.Errors) > 0
}

// Backup creates a new snapshot of source below destinationRoot. Files that
// did not change since the most recent snapshot are moved out of it
// instead of being copied again; new and modified files are copied from
// source. Per-file failures are collected in the summary and do not abort
// the run.
func (s *Service) Backup(ctx context.Context, source, destinationRoot string, opts BackupOptions) (*BackupSummary, error) {
	src, dest, err := s.checkBackupPaths(source, destinationRoot)
	if err != nil {
		s.logger.Error("aborting backup", "error", err)
		return nil, err
	}

	target, err := s.targets.OpenTarget(dest, filepath.Base(src))
	if err != nil {
		return nil, Classify("backup", dest, err)
	}

	previous, previousManifest, err := s.findPrevious(target)
	if err != nil {
		return nil, err
	}
	if opts.Full && previous != "" {
		s.logger.Info("full backup requested, not reusing history", "previous", previous)
		previous, previousManifest = "", NewManifest()
	}
	if previous == "" {
		s.logger.Info("making full backup", "target", target.Root())
	} else {
		s.logger.Info("using history", "path", target.SnapshotPath(previous))
	}

	summary := &BackupSummary{Source: src, Target: target.Root(), Previous: previous}

	s.logger.Info("scanning", "path", src)
	scan, err := s.scanner.Scan(ctx, src)
	if err != nil {
		return nil, err
	}
	summary.Errors = append(summary.Errors, scan.Errors...)
	summary.Failed += len(scan.Errors)

	if err := s.store.Save(src, s.Method(), scan.Manifest); err != nil {
		s.logger.Warn("could not store manifest in source", "path", src, "error", err)
		summary.Errors = append(summary.Errors, Classify("backup", src, err))
	}

	diff := Diff(scan.Manifest, previousManifest, DiffOptions{IncludeUnchanged: true})

	name, snapshotDir, err := s.allocateSnapshot(target)
	if err != nil {
		return nil, err
	}
	summary.Snapshot = name
	s.logger.Info("create backup", "path", snapshotDir)

	placed := NewManifest()
	for _, entry := range diff.Entries() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		rel := filepath.FromSlash(entry.Path)
		dst := filepath.Join(snapshotDir, rel)
		sum, _ := scan.Manifest.Get(entry.Path)

		switch {
		case entry.State.Has(Unchanged):
			err := s.placeFile(dst, func() error {
				return s.fsmgr.MoveFile(filepath.Join(target.SnapshotPath(previous), rel), dst)
			})
			if errors.Is(err, ErrNotFound) {
				s.logger.Warn("file missing from previous snapshot, copying from source", "path", entry.Path)
				if err = s.copyFromSource(src, rel, dst); err == nil {
					summary.New++
					placed.Set(entry.Path, sum)
					continue
				}
			}
			if err != nil {
				s.fileFailed(summary, "move", entry.Path, err)
				continue
			}
			summary.Unchanged++
			placed.Set(entry.Path, sum)

		case entry.State.Has(Modified), entry.State.Has(MissingFromTarget):
			if err := s.copyFromSource(src, rel, dst); err != nil {
				s.fileFailed(summary, "copy", entry.Path, err)
				continue
			}
			summary.New++
			if entry.State.Has(Modified) {
				summary.Modified++
			}
			placed.Set(entry.Path, sum)

		case entry.State.Has(MissingFromSource):
			summary.Deleted++
		}
	}

	// The manifest marks the snapshot as complete history.
	if err := s.store.Save(snapshotDir, s.Method(), placed); err != nil {
		return summary, Classify("backup", snapshotDir, err)
	}

	s.recordSnapshot(summary)

	s.logger.Notice("    new files", "count", summary.New)
	s.logger.Notice("   same files", "count", summary.Unchanged)
	s.logger.Notice("deleted files", "count", summary.Deleted)
	if summary.Failed > 0 {
		s.logger.Warn(" failed files", "count", summary.Failed)
	}
	return summary, nil
}

// checkBackupPaths validates and canonicalizes source and destination.
func (s *Service) checkBackupPaths(source, destinationRoot string) (string, string, error) {
	p, err := s.fsmgr.Resolve(source)
	if err != nil {
		return "", "", Classify("backup", source, err)
	}
	if !p.IsDir() {
		return "", "", Errorf(KindInvalidArgument, "backup", p.String(), "source is not a directory")
	}
	src := canonical(p.String())

	dest, err := filepath.Abs(destinationRoot)
	if err != nil {
		return "", "", Classify("backup", destinationRoot, err)
	}
	dest = canonical(dest)

	if isWithin(dest, src) {
		return "", "", Errorf(KindInvalidArgument, "backup", src, "source must not be a sub-path of target %s", dest)
	}
	if isWithin(src, dest) {
		return "", "", Errorf(KindInvalidArgument, "backup", dest, "target must not be a sub-path of source %s", src)
	}
	return src, dest, nil
}

// findPrevious returns the most recent snapshot that carries a manifest for
// the active method, together with that manifest. Snapshot directories
// without a manifest are leftovers of interrupted runs and are skipped.
func (s *Service) findPrevious(target BackupTarget) (string, *Manifest, error) {
	entries, err := target.Entries()
	if err != nil {
		return "", nil, Classify("backup", target.Root(), err)
	}

	for i := len(entries) - 1; i >= 0; i-- {
		name := entries[i]
		if !IsSnapshotName(name) {
			continue
		}
		dir := target.SnapshotPath(name)
		ok, err := s.store.Exists(dir, s.Method())
		if err != nil {
			return "", nil, Classify("backup", dir, err)
		}
		if !ok {
			s.logger.Warn("ignoring incomplete snapshot", "path", dir)
			continue
		}
		m, err := s.store.Load(dir, s.Method())
		if err != nil {
			return "", nil, Classify("backup", dir, err)
		}
		return name, m, nil
	}

	s.logger.Notice("no history found", "target", target.Root())
	return "", NewManifest(), nil
}

// allocateSnapshot creates a snapshot directory whose name is strictly
// greater than every snapshot name already present. When the current second
// is taken it waits for the next one; concurrent runs are separated by the
// exclusive directory creation.
func (s *Service) allocateSnapshot(target BackupTarget) (string, string, error) {
	for attempt := 0; attempt < s.opts.NameAttempts; attempt++ {
		now := s.clock.Now()
		name := SnapshotName(now)

		latest, err := latestSnapshotName(target)
		if err != nil {
			return "", "", err
		}

		if name > latest {
			dir, err := target.CreateSnapshot(name)
			if err == nil {
				return name, dir, nil
			}
			if !errors.Is(err, ErrNameCollision) {
				return "", "", Classify("backup", target.SnapshotPath(name), err)
			}
		}

		s.logger.Debug("snapshot name taken, waiting", "name", name, "latest", latest)
		s.clock.Sleep(untilNextSecond(now))
	}
	return "", "", Errorf(KindNameCollision, "backup", target.Root(),
		"no free snapshot name after %d attempts", s.opts.NameAttempts)
}

func latestSnapshotName(target BackupTarget) (string, error) {
	entries, err := target.Entries()
	if err != nil {
		return "", Classify("backup", target.Root(), err)
	}
	latest := ""
	for _, name := range entries {
		if IsSnapshotName(name) && name > latest {
			latest = name
		}
	}
	return latest, nil
}

func untilNextSecond(now time.Time) time.Duration {
	d := now.Truncate(time.Second).Add(time.Second).Sub(now)
	if d <= 0 {
		return time.Second
	}
	return d
}

func (s *Service) copyFromSource(src, rel, dst string) error {
	return s.placeFile(dst, func() error {
		return s.fsmgr.CopyFile(filepath.Join(src, rel), dst)
	})
}

// placeFile creates the parent directories of dst and runs op.
func (s *Service) placeFile(dst string, op func() error) error {
	if err := s.fsmgr.MkdirAll(filepath.Dir(dst)); err != nil {
		return Classify("mkdir", filepath.Dir(dst), err)
	}
	if err := op(); err != nil {
		return Classify("", dst, err)
	}
	return nil
}

func (s *Service) fileFailed(summary *BackupSummary, op, path string, err error) {
	e := Classify(op, path, err)
	s.logger.Warn("backup of file failed", "path", path, "error", err)
	summary.Errors = append(summary.Errors, e)
	summary.Failed++
}

func (s *Service) recordSnapshot(summary *BackupSummary) {
	rec := &SnapshotRecord{
		ID:        s.idgen.New(),
		RunID:     s.opts.RunID,
		Target:    summary.Target,
		Name:      summary.Snapshot,
		Previous:  summary.Previous,
		Method:    s.Method(),
		New:       summary.New,
		Modified:  summary.Modified,
		Unchanged: summary.Unchanged,
		Deleted:   summary.Deleted,
		Failed:    summary.Failed,
		CreatedAt: s.clock.Now(),
	}
	if err := s.history.RecordSnapshot(rec); err != nil {
		s.logger.Warn("could not record snapshot history", "snapshot", summary.Snapshot, "error", err)
		summary.Errors = append(summary.Errors, Classify("record history", summary.Snapshot, err))
	}
}

// canonical resolves symlinks where possible so containment checks compare
// real locations. Paths that do not exist yet are returned cleaned.
func canonical(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}

// isWithin reports whether child equals parent or lies below it.
func isWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
