package domain

import (
	"errors"
	"fmt"
)

// Severity tells whether a failure may be tolerated by the caller
type Severity int

// severities, fatal is the zero value
const (
	Fatal Severity = iota
	Recoverable
)

// String returns a human-readable severity name
func (s Severity) String() string {
	if s == Recoverable {
		return "recoverable"
	}
	return "fatal"
}

// ErrorKind enumerates the failures a run can end with
type ErrorKind string

// error kinds produced by the pipeline and its collaborators
const (
	ErrInvalidExpression ErrorKind = "invalid expression"
	ErrMissingGUIDVar    ErrorKind = "missing guid var"
	ErrConfig            ErrorKind = "config"
	ErrHistory           ErrorKind = "history"
	ErrNoMatch           ErrorKind = "no match"
	ErrTransport         ErrorKind = "transport"
	ErrHTTPStatus        ErrorKind = "http status"
)

// Severity returns the severity of the error kind.
// Only failures that may go away on the next run are recoverable.
func (k ErrorKind) Severity() Severity {
	switch k {
	case ErrNoMatch, ErrTransport, ErrHTTPStatus:
		return Recoverable
	default:
		return Fatal
	}
}

// Error is a classified pipeline failure
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error // optional cause
}

// NewError makes a classified error with formatted message
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError makes a classified error keeping the cause
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Unwrap returns the cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Severity returns the severity of the error's kind
func (e *Error) Severity() Severity {
	return e.Kind.Severity()
}

// KindOf returns the kind of the first classified error in the chain.
// Unclassified errors are reported as false.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind checks if err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsRecoverable checks if err is a classified recoverable failure.
// Anything unclassified is treated as fatal.
func IsRecoverable(err error) bool {
	k, ok := KindOf(err)
	return ok && k.Severity() == Recoverable
}
