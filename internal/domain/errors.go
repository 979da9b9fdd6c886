package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Every error surfaced to the view carries one of these
// so callers can branch with errors.Is.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrAuthentication = errors.New("authentication error")
	ErrFeed           = errors.New("feed error")
	ErrSend           = errors.New("send error")

	// ErrNotReady is returned by operations that were skipped because a
	// precondition (identity, backend, display name, non-empty text) is missing.
	ErrNotReady = errors.New("not ready")
)

// Error is a classified failure: Kind is one of the sentinels above, Op names
// the operation that failed and Err is the underlying cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

// NewError creates a classified error.
func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error kind, so errors.Is(err, ErrSend) works on wrapped values.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// Fatal reports whether the error must short-circuit the view to the error screen.
func (e *Error) Fatal() bool {
	return e.Kind == ErrConfiguration || e.Kind == ErrAuthentication
}

// IsFatal reports whether err is a classified fatal error.
func IsFatal(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Fatal()
	}
	return false
}

// KindName returns a short label for the kind of err, or "unknown".
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrFeed):
		return "feed"
	case errors.Is(err, ErrSend):
		return "send"
	default:
		return "unknown"
	}
}
