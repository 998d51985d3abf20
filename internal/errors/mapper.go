// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// Sentinel errors forming the domain error taxonomy.
// Services return these; the HTTP layer maps them via Status.
var (
	// ErrNotProvisioned marks an optional table/view/column that is absent
	// from the current schema. Callers treat it as empty/false, never as a
	// user-visible failure.
	ErrNotProvisioned = errors.New("feature not provisioned")

	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("not allowed")
	ErrNotFound        = errors.New("not found")
	ErrSelfTarget      = errors.New("cannot decide on yourself")
	ErrInvalidInput    = errors.New("invalid input")
)

// Status converts repo/service errors into an HTTP status code.
// Keeps handlers clean by centralizing error mapping.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized

	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrSelfTarget), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return 499 // client closed request

	default:
		return http.StatusInternalServerError
	}
}

// Invalid wraps a validation message into ErrInvalidInput.
func Invalid(msg string) error {
	return &wrapped{msg: msg, err: ErrInvalidInput}
}

type wrapped struct {
	msg string
	err error
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.err }
