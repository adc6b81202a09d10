package services

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a business-rule failure. The HTTP layer maps each kind to
// a status code and exposes it as the machine-readable reason.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindInvalidState      Kind = "invalid_state"
	KindAlreadyExists     Kind = "already_exists"
	KindAlreadyAdded      Kind = "already_added"
	KindMissingAction     Kind = "missing_action"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindUnauthenticated   Kind = "unauthenticated"
	KindDependencyFailure Kind = "dependency_failure"
)

// Error is returned by every service operation that fails for a reason the
// caller can act on. Details enumerates each violation of a ValidationError.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Details, "; "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, services.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrAlreadyExists     = &Error{Kind: KindAlreadyExists}
	ErrAlreadyAdded      = &Error{Kind: KindAlreadyAdded}
	ErrMissingAction     = &Error{Kind: KindMissingAction}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrDependencyFailure = &Error{Kind: KindDependencyFailure}
)

func validationError(details ...string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Details: details}
}

func invalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func notFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func dependencyFailure(msg string, err error) *Error {
	return &Error{Kind: KindDependencyFailure, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
