package drift

import (
	"errors"
	"net/http"
)

// Domain errors for drift operations.
var (
	ErrNotFound          = errors.New("drift event not found")
	ErrDuplicate         = errors.New("drift event already open")
	ErrInvalidTransition = errors.New("invalid drift event transition")
	ErrInvalidIdentifier = errors.New("invalid field identifier")
	ErrInvalidOp         = errors.New("invalid mutation op")
	ErrImmutableSource   = errors.New("vendor source does not support mutation")
)

// MapHTTPStatus maps drift domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrInvalidTransition) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidIdentifier) || errors.Is(err, ErrInvalidOp) ||
		errors.Is(err, ErrImmutableSource) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
