package chdiff

import (
	"cmp"
	"context"
	"io/fs"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ScanResult is the manifest of a tree plus the per-file problems met while
// building it. Files listed in Errors are absent from Manifest.
type ScanResult struct {
	Root     string
	Manifest *Manifest
	Errors   []*Error
}

// Scanner walks a directory tree and digests every regular file.
type Scanner struct {
	fsmgr    FilesystemManager
	digester Digester
	logger   Logger
	jobs     int
	progress func() Progress
}

// NewScanner creates a Scanner digesting with up to jobs files in flight.
// jobs <= 0 selects runtime.NumCPU().
func NewScanner(fsmgr FilesystemManager, digester Digester, logger Logger, jobs int) *Scanner {
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	return &Scanner{
		fsmgr:    fsmgr,
		digester: digester,
		logger:   logger,
		jobs:     jobs,
		progress: func() Progress { return NopProgress{} },
	}
}

// SetProgress installs a factory for per-scan progress indicators.
func (sc *Scanner) SetProgress(f func() Progress) {
	if f != nil {
		sc.progress = f
	}
}

// Method returns the digest method of the scanner.
func (sc *Scanner) Method() Method {
	return sc.digester.Method()
}

// Scan builds the manifest of root. Manifest files are skipped at every
// depth. Per-file and per-directory failures are collected in the result
// and never stop the scan; only an unusable root or a cancelled context
// makes Scan fail.
func (sc *Scanner) Scan(ctx context.Context, root string) (*ScanResult, error) {
	info, err := sc.fsmgr.Stat(root)
	if err != nil {
		return nil, Classify("scan", root, err)
	}
	if !info.IsDir() {
		return nil, Errorf(KindInvalidArgument, "scan", root, "not a directory")
	}

	result := &ScanResult{Root: root, Manifest: NewManifest()}
	var mu sync.Mutex
	record := func(e *Error) {
		sc.logger.Warn("skipping unreadable entry", "path", e.Path, "error", e.Err)
		mu.Lock()
		result.Errors = append(result.Errors, e)
		mu.Unlock()
	}

	progress := sc.progress()
	progress.Start("scanning " + root)
	defer progress.Finish()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sc.jobs)

	walkErr := sc.fsmgr.WalkFiles(root, func(rel string, _ fs.FileInfo, walkErr error) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			record(Classify("scan", rel, walkErr))
			return nil
		}
		if IsManifestName(rel) {
			return nil
		}
		g.Go(func() error {
			sum, err := sc.digester.Digest(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				ce := Classify("digest", rel, err)
				record(NewError(ce.Kind, "digest", rel, ce.Err))
				return nil
			}
			mu.Lock()
			result.Manifest.Set(rel, sum)
			mu.Unlock()
			progress.Increment()
			return nil
		})
		return nil
	})
	waitErr := g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, Classify("scan", root, walkErr)
	}
	if waitErr != nil {
		return nil, Classify("scan", root, waitErr)
	}

	slices.SortFunc(result.Errors, func(a, b *Error) int { return cmp.Compare(a.Path, b.Path) })
	sc.logger.Debug("scan complete", "path", root, "files", result.Manifest.Len(), "errors", len(result.Errors))
	return result, nil
}
