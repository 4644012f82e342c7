package approvals

import (
	"errors"
	"net/http"
)

// Domain errors for approval operations.
var (
	ErrNotFound  = errors.New("approval ticket not found")
	ErrDuplicate = errors.New("approval ticket already exists")
	// ErrConflict indicates the ticket was already decided; the caller
	// lost a concurrent decision race.
	ErrConflict = errors.New("approval ticket already decided")
	// ErrBusy indicates the ticket's connection is leased by another
	// reconciliation phase; the decision should be retried.
	ErrBusy = errors.New("connection busy with another reconciliation phase")
)

// MapHTTPStatus maps approval domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrDuplicate) || errors.Is(err, ErrBusy) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
