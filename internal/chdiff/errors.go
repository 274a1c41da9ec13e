package chdiff

import (
	"errors"
	"fmt"
	"io/fs"
)

// Kind classifies an error for reporting and exit-status decisions.
type Kind int

const (
	KindIO Kind = iota
	KindNotFound
	KindPermissionDenied
	KindFormat
	KindInvalidArgument
	KindNameCollision
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindPermissionDenied:
		return "permission denied"
	case KindFormat:
		return "format error"
	case KindInvalidArgument:
		return "invalid argument"
	case KindNameCollision:
		return "name collision"
	default:
		return "i/o error"
	}
}

// Sentinels for errors.Is. Any *Error of the same Kind matches.
var (
	ErrIO               = &Error{Kind: KindIO}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrFormat           = &Error{Kind: KindFormat}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrNameCollision    = &Error{Kind: KindNameCollision}
)

// Error is a classified failure tied to an operation and, usually, a path.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Path == "" && t.Err == nil && t.Kind == e.Kind
}

// NewError builds an *Error of the given kind.
func NewError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Errorf builds an *Error of the given kind with a formatted cause.
func Errorf(kind Kind, op, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: fmt.Errorf(format, args...)}
}

// Classify wraps err into an *Error, deriving the Kind from the underlying
// filesystem error. Errors that are already classified keep their Kind.
func Classify(op, path string, err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		if ce.Op == "" && op != "" {
			return &Error{Kind: ce.Kind, Op: op, Path: ce.Path, Err: ce.Err}
		}
		return ce
	}
	kind := KindIO
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = KindNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = KindPermissionDenied
	case errors.Is(err, fs.ErrExist):
		kind = KindNameCollision
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf reports the Kind of err, or KindIO for unclassified errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Classify("", "", err).Kind
}
