package errors

import (
	"errors"
	"net/http"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrRoomGone            = errors.New("room is no longer active")
	ErrConflict            = errors.New("concurrent room update conflict")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInternal            = errors.New("internal server error")
)

// HTTPStatusFromError maps the service error taxonomy to HTTP status codes.
// NotFound and Gone are kept distinct so clients can tell "ended" from
// "never existed".
func HTTPStatusFromError(err error) int {
	switch {
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrParticipantNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRoomGone):
		return http.StatusGone
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
