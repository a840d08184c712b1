package shared

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable classification exposed to API clients.
type Kind string

const (
	KindUnauthorized    Kind = "unauthorized"
	KindNotFound        Kind = "not_found"
	KindInvalidInput    Kind = "invalid_input"
	KindConflict        Kind = "conflict"
	KindInvalidState    Kind = "invalid_state"
	KindUpstreamFailure Kind = "upstream_failure"
	KindUnavailable     Kind = "unavailable"
	KindInternal        Kind = "internal"
)

// Error carries a Kind alongside a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by identity first and falls back to kind+message so that
// copies produced by WithDetails still satisfy errors.Is against the original sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e == t || (e.Kind == t.Kind && e.Message == t.Message)
}

// WithDetails returns a copy of e carrying extra details for the client.
func (e *Error) WithDetails(details string) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// NewError builds a sentinel-style error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches kind and message to an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NotFound builds a not_found error.
func NotFound(message string) *Error { return NewError(KindNotFound, message) }

// InvalidInput builds an invalid_input error.
func InvalidInput(message string) *Error { return NewError(KindInvalidInput, message) }

// Unauthorized builds an unauthorized error.
func Unauthorized(message string) *Error { return NewError(KindUnauthorized, message) }

// Upstream wraps a failing dependency call.
func Upstream(message string, err error) *Error { return Wrap(KindUpstreamFailure, message, err) }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	// ErrNotFound indicates resource not found or not owned by the caller.
	ErrNotFound = NotFound("not found")
	// ErrTenantMissing indicates a request reached a handler without an authenticated tenant.
	ErrTenantMissing = Unauthorized("Missing or invalid Authorization header")
)
