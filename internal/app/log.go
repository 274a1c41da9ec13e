package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelNotice sits between INFO and WARN and carries results: verdicts,
// summaries and created manifests. It stays visible with -q.
const LevelNotice = slog.Level(2)

// LogFileName is the name of the rotating log file inside log_dir.
const LogFileName = "chdiff.log"

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < LevelNotice:
		return "INFO"
	case l < slog.LevelWarn:
		return "NOTICE"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ConsoleLevel maps the quiet and verbose flags to the minimum level shown on
// stderr.
func ConsoleLevel(quiet int, verbose bool) slog.Level {
	switch {
	case quiet >= 2:
		return slog.LevelError
	case quiet == 1:
		return LevelNotice
	case verbose:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// chdiffHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<runID>\t<message>\t<key=value ...>
type chdiffHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	runID string
	level slog.Leveler
	attrs []slog.Attr
}

func (h *chdiffHandler) Enabled(_ context.Context, l slog.Level) bool {
	return h.level == nil || l >= h.level.Level()
}

func (h *chdiffHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\t%s\t%s\t%s", r.Time.UTC().Format("2006-01-02T15:04:05Z"), levelName(r.Level), h.runID, r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
		return true
	})
	b.WriteByte('\n')
	return h.write(b.String())
}

func (h *chdiffHandler) write(s string) error {
	if h.mu != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
	}
	_, err := io.WriteString(h.w, s)
	return err
}

func (h *chdiffHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &h2
}

func (h *chdiffHandler) WithGroup(string) slog.Handler { return h }

// consoleHandler writes human-readable lines to a terminal:
//
//	[2006-01-02 15:04:05] message key=value ...
type consoleHandler struct {
	chdiffHandler
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", r.Time.Format("2006-01-02 15:04:05"))
	if r.Level >= slog.LevelWarn {
		b.WriteString(levelName(r.Level) + ": ")
	}
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})
	b.WriteByte('\n')
	return h.write(b.String())
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	inner := h.chdiffHandler.WithAttrs(attrs).(*chdiffHandler)
	return &consoleHandler{chdiffHandler: *inner}
}

func (h *consoleHandler) WithGroup(string) slog.Handler { return h }

// fanoutHandler hands every record to each handler that accepts its level.
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// LogOptions configure newLogger.
type LogOptions struct {
	Dir        string
	RunID      string
	Console    io.Writer // nil disables console output
	Level      slog.Level
	MaxSizeMB  int
	MaxBackups int
}

// newLogger creates a structured logger that writes everything at debug level
// to a rotating file in Dir and records at or above Level to Console. It
// returns the logger and the log file for cleanup.
func newLogger(opts LogOptions) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, LogFileName),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}
	handlers := fanoutHandler{
		&chdiffHandler{mu: &sync.Mutex{}, w: file, runID: opts.RunID, level: slog.LevelDebug},
	}
	if opts.Console != nil {
		handlers = append(handlers, &consoleHandler{chdiffHandler{
			mu: &sync.Mutex{}, w: opts.Console, runID: opts.RunID, level: opts.Level,
		}})
	}
	return slog.New(handlers), file, nil
}

// slogAdapter wraps *slog.Logger to satisfy the chdiff.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Notice(msg string, args ...any) {
	a.l.Log(context.Background(), LevelNotice, msg, args...)
}
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
