package materializer

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors for materialization.
var (
	// ErrNoMappings indicates the connection has no current mapping set;
	// materialization cannot proceed at all.
	ErrNoMappings = errors.New("no current mappings for connection")
	// ErrNotMaterialized indicates no batch exists yet for the requested view.
	ErrNotMaterialized = errors.New("entity not materialized")
	// ErrBusy indicates the connection is leased by another reconciliation
	// phase; the forced rebuild should be retried.
	ErrBusy = errors.New("connection busy with another reconciliation phase")
)

// Error wraps a fatal materialization failure with its connection context.
type Error struct {
	ConnectionID string
	Entity       string
	Err          error
}

func (e *Error) Error() string {
	return fmt.Sprintf("materialize %s/%s: %v", e.ConnectionID, e.Entity, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MapHTTPStatus maps materializer domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotMaterialized) || errors.Is(err, ErrNoMappings) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrBusy) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
