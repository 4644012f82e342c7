package connections

import (
	"errors"
	"net/http"
)

// Domain errors for connection operations.
var (
	ErrNotFound      = errors.New("connection not found")
	ErrDuplicate     = errors.New("connection already exists")
	ErrInvalidName   = errors.New("invalid connection name")
	ErrInvalidEntity = errors.New("invalid entity identifier")
	ErrInvalidStatus = errors.New("invalid connection status")
)

// MapHTTPStatus maps connection domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidName) || errors.Is(err, ErrInvalidEntity) || errors.Is(err, ErrInvalidStatus) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
