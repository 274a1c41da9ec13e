package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"chdiff/internal/chdiff"
	"chdiff/internal/config"
	"chdiff/internal/database"
	"chdiff/internal/digest"
	"chdiff/internal/fs"
	"chdiff/internal/manifest"
	"chdiff/internal/target"
)

// Options carry the per-invocation settings that do not live in the config
// file.
type Options struct {
	// Console receives human-readable log lines; nil disables them.
	Console      io.Writer
	ConsoleLevel slog.Level
	// Progress creates per-scan progress indicators; nil disables them.
	Progress func() chdiff.Progress
}

// App is the application layer between the CLI and chdiff.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and records the run in the history database.
// The caller must call Close when done.
type App struct {
	cfg     *config.Config
	db      *database.SQLiteDatabase
	fsmgr   *fs.OSFilesystemManager
	store   *manifest.FileStore
	service *chdiff.Service
	logger  chdiff.Logger
	op      *Operation
	logFile io.Closer
}

// NewApp creates a fully wired App from the given config. operation and
// args identify the CLI command being run.
func NewApp(cfg *config.Config, operation string, args []string, opts Options) (*App, error) {
	method, err := chdiff.ParseMethod(cfg.Method)
	if err != nil {
		return nil, err
	}

	patterns, err := ignorePatterns(cfg.Filesystem)
	if err != nil {
		return nil, err
	}
	fsmgr := fs.NewOSFilesystemManager(patterns)

	var throttler *digest.Throttler
	if cfg.Filesystem.ReadRate > 0 {
		throttler = digest.NewThrottler(float64(cfg.Filesystem.ReadRate))
	}
	digester, err := digest.New(method, throttler)
	if err != nil {
		return nil, err
	}

	runID := chdiff.UUIDGenerator{}.New()
	logger, logFile, err := newLogger(LogOptions{
		Dir:        cfg.LogDir,
		RunID:      runID,
		Console:    opts.Console,
		Level:      opts.ConsoleLevel,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	op := NewOperation(runID, operation, strings.Join(args, " "))
	dbOp, err := db.CreateOperation(op.RunID, op.Operation, op.Parameters)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("recording operation: %w", err)
	}
	op.ID = dbOp.ID

	scanner := chdiff.NewScanner(fsmgr, digester, log, cfg.Jobs)
	scanner.SetProgress(opts.Progress)

	store := manifest.NewFileStore()
	svc := chdiff.NewService(chdiff.Options{
		RunID:        runID,
		ParallelDirs: cfg.ParallelDirs,
		NameAttempts: cfg.Backup.NameAttempts,
	}, fsmgr, scanner, store, target.NewOpener(), db, log, chdiff.RealClock{}, chdiff.UUIDGenerator{})

	log.Debug("starting", "operation", operation, "args", op.Parameters, "method", method)
	return &App{
		cfg:     cfg,
		db:      db,
		fsmgr:   fsmgr,
		store:   store,
		service: svc,
		logger:  log,
		op:      op,
		logFile: logFile,
	}, nil
}

// ignorePatterns merges the configured patterns with those of the ignore file.
func ignorePatterns(cfg config.FilesystemConfig) ([]string, error) {
	patterns := append([]string{}, cfg.Ignore...)
	if cfg.IgnoreFile == "" {
		return patterns, nil
	}
	extra, err := fs.ParseIgnoreFile(cfg.IgnoreFile)
	if err != nil {
		return nil, err
	}
	return append(patterns, extra...), nil
}

// RunID returns the id of this run as recorded in the history database.
func (a *App) RunID() string {
	return a.op.RunID
}

// Method returns the digest method in use.
func (a *App) Method() chdiff.Method {
	return a.service.Method()
}

// Create writes a manifest into every directory. Failed directories are
// logged and reported in their Outcome.
func (a *App) Create(ctx context.Context, dirs []string) []chdiff.Outcome[*chdiff.CreateResult] {
	outcomes := chdiff.RunBatch(ctx, a.service.ParallelDirs(), dirs, a.service.Create)
	logFailures(a.logger, outcomes)
	return outcomes
}

// Verify checks every directory against its stored manifest.
func (a *App) Verify(ctx context.Context, dirs []string) []chdiff.Outcome[*chdiff.VerifyResult] {
	outcomes := chdiff.RunBatch(ctx, a.service.ParallelDirs(), dirs, a.service.Verify)
	logFailures(a.logger, outcomes)
	return outcomes
}

func logFailures[T any](logger chdiff.Logger, outcomes []chdiff.Outcome[T]) {
	for _, o := range outcomes {
		if o.Err != nil {
			logger.Error("skipping directory", "path", o.Dir, "kind", chdiff.KindOf(o.Err), "error", o.Err)
		}
	}
}

// Diff compares two directory trees.
func (a *App) Diff(ctx context.Context, left, right string, timestamps bool) (*chdiff.DirDiffResult, error) {
	return a.service.DiffDirs(ctx, left, right, timestamps)
}

// Backup creates a new snapshot of source below destinationRoot.
func (a *App) Backup(ctx context.Context, source, destinationRoot string, full bool) (*chdiff.BackupSummary, error) {
	return a.service.Backup(ctx, source, destinationRoot, chdiff.BackupOptions{Full: full})
}

// GetHistory returns the most recent operations, newest first.
func (a *App) GetHistory(limit int) ([]*database.Operation, error) {
	return a.db.ListOperations(limit)
}

// GetSnapshots returns the recorded snapshots of a backup target directory.
func (a *App) GetSnapshots(rawTarget string, limit int) ([]*chdiff.SnapshotRecord, error) {
	abs, err := filepath.Abs(rawTarget)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return a.db.ListSnapshots(abs, limit)
}

// Finish records the outcome of the command. err is the command's result.
func (a *App) Finish(err error) {
	a.op.Finish(err)
	if err != nil && a.op.Status == database.StatusError {
		a.logger.Error("operation failed", "operation", a.op.Operation, "error", err)
	}
}

// Close finalizes the operation record and closes all resources.
func (a *App) Close() error {
	var firstErr error
	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}
	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
