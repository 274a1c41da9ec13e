package chdiff

// Logger provides structured logging for the service layer.
// The args follow slog conventions: alternating key/value pairs.
//
// Notice carries per-directory results ("created", "OK", summaries). It sits
// between Info (progress) and Warn so that quiet mode can hide progress while
// keeping results.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Notice(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger is a Logger that discards all output. Use in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any)  {}
func (*NopLogger) Info(string, ...any)   {}
func (*NopLogger) Notice(string, ...any) {}
func (*NopLogger) Warn(string, ...any)   {}
func (*NopLogger) Error(string, ...any)  {}

// Progress receives one tick per digested file during a scan.
type Progress interface {
	Start(message string)
	Increment()
	Finish()
}

// NopProgress discards progress updates.
type NopProgress struct{}

func (NopProgress) Start(string) {}
func (NopProgress) Increment()   {}
func (NopProgress) Finish()      {}
