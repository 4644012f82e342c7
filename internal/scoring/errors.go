package scoring

import (
	"errors"
	"net/http"
)

// Domain errors for scoring operations.
var (
	ErrNotFound      = errors.New("scorecard not found")
	ErrDuplicate     = errors.New("scorecard already exists")
	ErrLowConfidence = errors.New("confidence below repair threshold")
)

// MapHTTPStatus maps scoring domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrLowConfidence) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
