// Package apperr defines the application error taxonomy shared by the
// session registry, admission engine and negotiation bridge. Handlers map
// kinds onto HTTP status codes via pkg/response.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	// KindInternal is the fallback for unclassified errors.
	KindInternal Kind = iota
	// KindInvalidState means the target is in the wrong lifecycle phase (e.g. session not live).
	KindInvalidState
	// KindNotFound means the session or spectator does not exist.
	KindNotFound
	// KindForbidden means the caller lacks moderator rights or the spectator is not approved.
	KindForbidden
	// KindConflict means a uniqueness rule was violated (e.g. a second live session).
	KindConflict
	// KindBadRequest means the request payload is missing or malformed.
	KindBadRequest
	// KindUpstream means the external streaming server is unreachable or misbehaving.
	KindUpstream
)

// Error is an application error with a stable machine-readable code and a
// human message. Code is what API clients switch on; Message is for display.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// New creates an Error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates an Error of the given kind wrapping a cause.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// InvalidState creates a KindInvalidState error.
func InvalidState(code, message string) *Error { return New(KindInvalidState, code, message) }

// NotFound creates a KindNotFound error.
func NotFound(code, message string) *Error { return New(KindNotFound, code, message) }

// Forbidden creates a KindForbidden error.
func Forbidden(code, message string) *Error { return New(KindForbidden, code, message) }

// Conflict creates a KindConflict error.
func Conflict(code, message string) *Error { return New(KindConflict, code, message) }

// BadRequest creates a KindBadRequest error.
func BadRequest(code, message string) *Error { return New(KindBadRequest, code, message) }

// Upstream creates a KindUpstream error wrapping the transport cause.
func Upstream(code, message string, err error) *Error {
	return Wrap(KindUpstream, code, message, err)
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
