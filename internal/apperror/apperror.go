// Package apperror defines the typed errors returned by the auth core and
// the resource handlers. Each constructor returns a fresh value, so callers
// may decorate an error with detail or data without affecting any other
// request.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags an Error with its category.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthorized    Kind = "unauthorized"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindTokenGeneration Kind = "token_generation"
	KindInternal        Kind = "internal"
)

// Error is the single error type rendered into the JSON envelope.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Detail  any // rendered under "error"
	Data    any // rendered under "data"
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetail attaches a client-visible detail payload.
func (e *Error) WithDetail(detail any) *Error {
	e.Detail = detail
	return e
}

// WithData attaches a client-visible data payload.
func (e *Error) WithData(data any) *Error {
	e.Data = data
	return e
}

// Wrap records the underlying cause. The cause is logged, never rendered.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

func newError(kind Kind, status int, msg string) *Error {
	return &Error{Kind: kind, Status: status, Message: msg}
}

// Validation is a 400 for missing or malformed input.
func Validation(msg string) *Error { return newError(KindValidation, http.StatusBadRequest, msg) }

// Unauthorized is a 401 for bad credentials or unusable tokens.
func Unauthorized(msg string) *Error {
	return newError(KindUnauthorized, http.StatusUnauthorized, msg)
}

// Forbidden is a 403; the auth core uses it only for expired tokens.
func Forbidden(msg string) *Error { return newError(KindForbidden, http.StatusForbidden, msg) }

// NotFound is a 404.
func NotFound(msg string) *Error { return newError(KindNotFound, http.StatusNotFound, msg) }

// TokenGeneration reports a signing failure during login or refresh. Those
// flows answer it with 401.
func TokenGeneration(msg string) *Error {
	return newError(KindTokenGeneration, http.StatusUnauthorized, msg)
}

// Internal is a 500 with the generic message; the cause stays server side.
func Internal(err error) *Error {
	return newError(KindInternal, http.StatusInternalServerError, MsgInternal).Wrap(err)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == kind
}

// UnsupportedOption is a 500 for a replace or update request whose target
// selector cannot be interpreted.
func UnsupportedOption() *Error {
	return newError(KindInternal, http.StatusInternalServerError, MsgUnsupportedOpt)
}
