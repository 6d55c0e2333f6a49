package errors

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for callers and for the HTTP error boundary.
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindDuplicateAccount   Kind = "duplicate_account"
	KindTokenExpired       Kind = "token_expired"
	KindTokenRevoked       Kind = "token_revoked"
	KindTokenMalformed     Kind = "token_malformed"
	KindInactiveAccount    Kind = "inactive_account"
	KindUnhandledInternal  Kind = "unhandled_internal"

	KindBadRequest      Kind = "bad_request"
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindUnauthorized    Kind = "unauthorized"
	KindTooManyRequests Kind = "too_many_requests"
)

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
	Kind       Kind
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

// Is matches on Kind, so errors.Is(err, ErrTokenMalformed) holds for any
// malformed-token error regardless of its message.
func (e *ErrorWithStatusCode) Is(target error) bool {
	t, ok := target.(*ErrorWithStatusCode)
	if !ok || t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrInvalidCredentials = &ErrorWithStatusCode{Message: "Invalid credentials", StatusCode: http.StatusUnauthorized, Kind: KindInvalidCredentials}
	ErrDuplicateAccount   = &ErrorWithStatusCode{Message: "Account with this email already exists", StatusCode: http.StatusConflict, Kind: KindDuplicateAccount}
	ErrTokenExpired       = &ErrorWithStatusCode{Message: "Token has expired", StatusCode: http.StatusUnauthorized, Kind: KindTokenExpired}
	ErrTokenRevoked       = &ErrorWithStatusCode{Message: "Token has been revoked", StatusCode: http.StatusUnauthorized, Kind: KindTokenRevoked}
	ErrTokenMalformed     = &ErrorWithStatusCode{Message: "Token is invalid", StatusCode: http.StatusUnauthorized, Kind: KindTokenMalformed}
	ErrInactiveAccount    = &ErrorWithStatusCode{Message: "Account is inactive", StatusCode: http.StatusForbidden, Kind: KindInactiveAccount}
)

// New builds an error of the given kind with a custom message.
func New(kind Kind, statusCode int, message string) *ErrorWithStatusCode {
	return &ErrorWithStatusCode{Message: message, StatusCode: statusCode, Kind: kind}
}

// BadRequest is a shorthand for client input errors.
func BadRequest(message string) *ErrorWithStatusCode {
	return New(KindBadRequest, http.StatusBadRequest, message)
}

// NotFound is a shorthand for missing records.
func NotFound(message string) *ErrorWithStatusCode {
	return New(KindNotFound, http.StatusNotFound, message)
}

// TokenMalformed reports a token that failed structural or signature checks.
func TokenMalformed(message string) *ErrorWithStatusCode {
	return New(KindTokenMalformed, http.StatusUnauthorized, message)
}

// KindOf reports the kind carried by err. Errors that carry no status are
// unhandled internal failures.
func KindOf(err error) Kind {
	var e *ErrorWithStatusCode
	if !errors.As(err, &e) {
		return KindUnhandledInternal
	}
	if e.Kind != "" {
		return e.Kind
	}
	switch e.StatusCode {
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindDuplicateAccount
	case http.StatusTooManyRequests:
		return KindTooManyRequests
	}
	if e.StatusCode >= 500 || e.StatusCode == 0 {
		return KindUnhandledInternal
	}
	return KindBadRequest
}

// IsNotFound reports whether err is a 404-class storage error.
func IsNotFound(err error) bool {
	var e *ErrorWithStatusCode
	if errors.As(err, &e) {
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// AsStatus returns the status-carrying error inside err, if any. Errors with
// a 5xx or zero status are treated as unrecognized.
func AsStatus(err error) (*ErrorWithStatusCode, bool) {
	var e *ErrorWithStatusCode
	if !errors.As(err, &e) {
		return nil, false
	}
	if e.StatusCode == 0 || e.StatusCode >= 500 {
		return nil, false
	}
	return e, true
}
