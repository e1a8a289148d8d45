// Package apperr defines the error kinds shared by the services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindAuthorization
	KindConflict
	KindNotFound
	KindInvalid
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error is a classified error. Code is a stable machine-readable identifier,
// Msg is safe to show to callers.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == ErrNotFound || e.Err == ErrConflict {
		return e.Msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error without a cause.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Wrap classifies err under kind. The sentinel is kept as the cause so that
// errors.Is matches both the sentinel and anything it wraps.
func Wrap(sentinel *Error, err error) error {
	if err == nil {
		return sentinel
	}
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Msg: sentinel.Msg, Err: errors.Join(sentinel, err)}
}

// KindOf reports the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Invalid builds a validation error with a caller-facing message.
func Invalid(msg string) *Error {
	return New(KindInvalid, "invalid_request", msg)
}

// NotFound builds a specific not-found error that still matches ErrNotFound.
func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Msg: msg, Err: ErrNotFound}
}

// Conflict builds a specific conflict error that still matches ErrConflict.
func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Msg: msg, Err: ErrConflict}
}

// Shared sentinels. Package-specific sentinels live next to their packages
// and are built with New.
var (
	ErrInvalidCredentials = New(KindAuthentication, "invalid_credentials", "invalid credentials")
	ErrTokenInvalid       = New(KindAuthentication, "token_invalid", "invalid token")
	ErrTokenRevoked       = New(KindAuthentication, "token_revoked", "token revoked")
	ErrTokenExpired       = New(KindAuthentication, "token_expired", "token expired")
	ErrPrincipalInactive  = New(KindAuthentication, "principal_inactive", "principal inactive")
	ErrUnauthenticated    = New(KindAuthentication, "unauthenticated", "authentication required")

	ErrForbidden = New(KindAuthorization, "forbidden", "forbidden")

	ErrConflict = New(KindConflict, "conflict", "already exists")

	ErrNotFound        = New(KindNotFound, "not_found", "not found")
	ErrSessionNotFound = New(KindNotFound, "session_not_found", "refresh token not found")

	ErrRateLimited = New(KindRateLimited, "rate_limited", "too many requests")
)
