// Package apperrors defines the typed error taxonomy shared by all core
// operations. Handlers map kinds to HTTP statuses via pkg/response; repositories
// and engines return these instead of raw pgx or SDK errors so callers can react
// without parsing messages.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure.
type Kind int

const (
	// KindValidation: malformed input or violated business invariant. Never retried.
	KindValidation Kind = iota + 1
	// KindForbidden: authenticated but unauthorized actor for a visible resource.
	KindForbidden
	// KindNotFound: resource absent, or concealed from an actor outside its space.
	KindNotFound
	// KindConflict: state-transition race lost (duplicate claim, non-open request).
	KindConflict
	// KindExpired: time-bound resource lapsed (upload window, feedback SLA).
	KindExpired
	// KindTransientBackend: storage backend call failed with local state unchanged;
	// the whole operation is safe to retry.
	KindTransientBackend
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindExpired:
		return "expired"
	case KindTransientBackend:
		return "transient_backend"
	}
	return "unknown"
}

// Error carries a kind plus a caller-facing message and optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.cause.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a typed error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a typed error wrapping a cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Validation returns a KindValidation error.
func Validation(format string, args ...any) *Error { return New(KindValidation, format, args...) }

// Forbidden returns a KindForbidden error.
func Forbidden(format string, args ...any) *Error { return New(KindForbidden, format, args...) }

// NotFound returns a KindNotFound error.
func NotFound(format string, args ...any) *Error { return New(KindNotFound, format, args...) }

// Conflict returns a KindConflict error.
func Conflict(format string, args ...any) *Error { return New(KindConflict, format, args...) }

// Expired returns a KindExpired error.
func Expired(format string, args ...any) *Error { return New(KindExpired, format, args...) }

// TransientBackend wraps a storage backend failure that left local state unchanged.
func TransientBackend(cause error, message string) *Error {
	return Wrap(KindTransientBackend, cause, message)
}

// KindOf returns the kind of err, or 0 if err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool { return KindOf(err) == kind }

// MessageOf returns the caller-facing message of err, or err.Error() for
// untyped errors.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
