package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can map it to a transport-level
// response without inspecting error strings.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindAuth         Kind = "auth_error"
	KindNotFound     Kind = "not_found"
	KindRateLimited  Kind = "rate_limited"
	KindAIService    Kind = "ai_service_error"
	KindParse        Kind = "parse_error"
	KindConflict     Kind = "conflict"
	KindWrite        Kind = "write_error"
	KindUnknown      Kind = "unknown"
)

// Error carries a failure kind alongside the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a kind and message. It returns nil when err is nil.
func Wrap(kind Kind, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// IsKind reports whether err's chain contains an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
