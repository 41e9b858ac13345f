// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP status codes and writes the
// standard error envelope.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Error(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicate):
		Error(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation):
		Error(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		Error(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrUnauthorized):
		Error(w, r, http.StatusUnauthorized, err.Error())
	default:
		Error(w, r, http.StatusInternalServerError, "internal server error")
	}
}
