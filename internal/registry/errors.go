package registry

import (
	"errors"
	"net/http"
)

// Domain errors for mapping registry operations.
var (
	ErrNotFound          = errors.New("mapping entry not found")
	ErrDuplicate         = errors.New("mapping entry already exists")
	ErrVersionConflict   = errors.New("mapping version conflict")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidTransform  = errors.New("invalid transform kind")
)

// MapHTTPStatus maps registry domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidIdentifier) || errors.Is(err, ErrInvalidTransform) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
