package testutil

import (
	"fmt"
	"sync"
	"testing"

	"chdiff/internal/chdiff"
	"chdiff/internal/database"
	"chdiff/internal/digest"
	"chdiff/internal/fs"
	"chdiff/internal/manifest"
	"chdiff/internal/target"
)

// LogEntry is one message captured by RecordingLogger.
type LogEntry struct {
	Level   string
	Message string
	Args    []any
}

func (e LogEntry) String() string {
	return fmt.Sprintf("%s %s %v", e.Level, e.Message, e.Args)
}

// RecordingLogger keeps every message for assertions. Safe for concurrent use.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (l *RecordingLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Message: msg, Args: args})
}

func (l *RecordingLogger) Debug(msg string, args ...any)  { l.add("DEBUG", msg, args) }
func (l *RecordingLogger) Info(msg string, args ...any)   { l.add("INFO", msg, args) }
func (l *RecordingLogger) Notice(msg string, args ...any) { l.add("NOTICE", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...any)   { l.add("WARN", msg, args) }
func (l *RecordingLogger) Error(msg string, args ...any)  { l.add("ERROR", msg, args) }

// Entries returns the captured messages at level, or all when level is empty.
func (l *RecordingLogger) Entries(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []LogEntry
	for _, e := range l.entries {
		if level == "" || e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// HasMessage reports whether msg was logged at level.
func (l *RecordingLogger) HasMessage(level, msg string) bool {
	for _, e := range l.Entries(level) {
		if e.Message == msg {
			return true
		}
	}
	return false
}

// TestService bundles a Service wired to the real filesystem with the stubs
// tests need to inspect.
type TestService struct {
	*chdiff.Service
	Clock   *StubClock
	IDs     *StubIDGenerator
	Logger  *RecordingLogger
	History *database.SQLiteDatabase
	FS      *fs.OSFilesystemManager
	Store   *manifest.FileStore
}

// ServiceConfig tunes NewTestService.
type ServiceConfig struct {
	Method         chdiff.Method
	Jobs           int
	ParallelDirs   int
	NameAttempts   int
	IgnorePatterns []string
	Clock          *StubClock
	// Hooks, when set, sits between the service and the real filesystem.
	Hooks          *HookedFS
}

// NewTestService creates a Service over the real filesystem with a stub
// clock, sequential ids, a recording logger and an in-memory history.
func NewTestService(t *testing.T, cfg ServiceConfig) *TestService {
	t.Helper()

	if cfg.Method == "" {
		cfg.Method = chdiff.MethodSHA256
	}
	if cfg.Jobs == 0 {
		cfg.Jobs = 4
	}
	if cfg.Clock == nil {
		cfg.Clock = FixedClock()
	}

	d, err := digest.New(cfg.Method, nil)
	if err != nil {
		t.Fatalf("creating digester: %v", err)
	}

	ts := &TestService{
		Clock:   cfg.Clock,
		IDs:     NewStubIDGenerator(),
		Logger:  &RecordingLogger{},
		History: NewTestHistory(t),
		FS:      fs.NewOSFilesystemManager(cfg.IgnorePatterns),
		Store:   manifest.NewFileStore(),
	}
	var fsmgr chdiff.FilesystemManager = ts.FS
	if cfg.Hooks != nil {
		cfg.Hooks.FilesystemManager = ts.FS
		fsmgr = cfg.Hooks
	}
	scanner := chdiff.NewScanner(fsmgr, d, ts.Logger, cfg.Jobs)
	ts.Service = chdiff.NewService(chdiff.Options{
		RunID:        TestRunID,
		ParallelDirs: cfg.ParallelDirs,
		NameAttempts: cfg.NameAttempts,
	}, fsmgr, scanner, ts.Store, target.NewOpener(), ts.History, ts.Logger, ts.Clock, ts.IDs)
	return ts
}
