package chdiff

import (
	"context"
	"fmt"
	"path/filepath"
)

// Options is the immutable configuration of a Service.
type Options struct {
	// RunID tags history records written by this service.
	RunID string

	// ParallelDirs bounds how many directories RunBatch processes at once.
	ParallelDirs int

	// NameAttempts bounds how often the backup engine retries snapshot name
	// allocation before failing with KindNameCollision.
	NameAttempts int
}

const defaultNameAttempts = 5

// Service is the orchestration layer that coordinates scanning, manifests,
// diffing and snapshots on behalf of the CLI.
type Service struct {
	opts    Options
	fsmgr   FilesystemManager
	scanner *Scanner
	store   ManifestStore
	targets TargetOpener
	history History
	logger  Logger
	clock   Clock
	idgen   IDGenerator
}

// NewService creates a new Service with the provided dependencies.
func NewService(opts Options, fsmgr FilesystemManager, scanner *Scanner, store ManifestStore, targets TargetOpener, history History, logger Logger, clock Clock, idgen IDGenerator) *Service {
	if opts.NameAttempts <= 0 {
		opts.NameAttempts = defaultNameAttempts
	}
	if opts.ParallelDirs <= 0 {
		opts.ParallelDirs = 1
	}
	return &Service{
		opts:    opts,
		fsmgr:   fsmgr,
		scanner: scanner,
		store:   store,
		targets: targets,
		history: history,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
	}
}

// Method returns the digest method used for all manifests.
func (s *Service) Method() Method {
	return s.scanner.Method()
}

// ParallelDirs returns the configured batch parallelism.
func (s *Service) ParallelDirs() int {
	return s.opts.ParallelDirs
}

// CreateResult reports a manifest written by Create.
type CreateResult struct {
	Dir          string
	ManifestPath string
	Files        int
	Errors       []*Error
}

// Create scans dir and stores its manifest inside it.
func (s *Service) Create(ctx context.Context, dir string) (*CreateResult, error) {
	root, err := s.resolveDir("create", dir)
	if err != nil {
		return nil, err
	}

	s.logger.Info("scanning", "path", root)
	scan, err := s.scanner.Scan(ctx, root)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(root, s.Method(), scan.Manifest); err != nil {
		return nil, Classify("create", root, err)
	}

	manifestPath := filepath.Join(root, s.Method().ManifestName())
	s.logger.Notice("created", "path", manifestPath, "files", scan.Manifest.Len())
	return &CreateResult{
		Dir:          root,
		ManifestPath: manifestPath,
		Files:        scan.Manifest.Len(),
		Errors:       scan.Errors,
	}, nil
}

// VerifyResult compares the stored manifest of a directory with its
// current content.
type VerifyResult struct {
	Dir     string
	Stored  *Manifest
	Current *Manifest
	Diff    *DiffResult
	Errors  []*Error
}

// OK reports whether the directory matches its manifest and every file
// could be read.
func (r *VerifyResult) OK() bool {
	return r.Diff.Len() == 0 && len(r.Errors) == 0
}

// Message renders the one-line verdict.
func (r *VerifyResult) Message() string {
	if n := r.Diff.Len(); n > 0 {
		return fmt.Sprintf("%d difference(s) found", n)
	}
	return "OK"
}

// Verify loads the stored manifest of dir and compares it against a fresh
// scan. Entries are classified with the stored manifest as source, so a
// file that disappeared is MissingFromTarget and a new file is
// MissingFromSource.
func (s *Service) Verify(ctx context.Context, dir string) (*VerifyResult, error) {
	root, err := s.resolveDir("verify", dir)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Load(root, s.Method())
	if err != nil {
		return nil, Classify("verify", root, err)
	}

	s.logger.Info("scanning", "path", root)
	scan, err := s.scanner.Scan(ctx, root)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{
		Dir:     root,
		Stored:  stored,
		Current: scan.Manifest,
		Diff:    Diff(stored, scan.Manifest, DiffOptions{}),
		Errors:  scan.Errors,
	}
	s.logger.Notice(result.Message(), "path", root)
	return result, nil
}

// DirDiffResult compares two directory trees.
type DirDiffResult struct {
	Left   string
	Right  string
	Diff   *DiffResult
	Errors []*Error
}

// DiffDirs refreshes the manifests of left and right, compares them and
// folds in modification-time differences of common files. Timestamp-only
// differences are reported only when timestamps is set.
func (s *Service) DiffDirs(ctx context.Context, left, right string, timestamps bool) (*DirDiffResult, error) {
	var errs []*Error
	manifests := make([]*Manifest, 2)
	roots := make([]string, 2)
	for i, dir := range []string{left, right} {
		created, err := s.Create(ctx, dir)
		if err != nil {
			s.logger.Warn("could not compare directories", "path", dir, "error", err)
			return nil, err
		}
		roots[i] = created.Dir
		errs = append(errs, created.Errors...)

		m, err := s.store.Load(created.Dir, s.Method())
		if err != nil {
			return nil, Classify("diff", created.Dir, err)
		}
		manifests[i] = m
	}

	result := Diff(manifests[0], manifests[1], DiffOptions{})
	pairs, walkErrs := CollectTimestampPairs(s.fsmgr, roots[0], roots[1])
	for _, err := range walkErrs {
		s.logger.Warn("timestamp comparison failed", "error", err)
		errs = append(errs, Classify("diff", "", err))
	}
	MergeTimestamps(result, pairs, timestamps)

	return &DirDiffResult{Left: roots[0], Right: roots[1], Diff: result, Errors: errs}, nil
}

// resolveDir turns a raw path into an absolute directory path.
func (s *Service) resolveDir(op, raw string) (string, error) {
	p, err := s.fsmgr.Resolve(raw)
	if err != nil {
		return "", Classify(op, raw, err)
	}
	if !p.IsDir() {
		return "", Errorf(KindInvalidArgument, op, p.String(), "not a directory")
	}
	return p.String(), nil
}
