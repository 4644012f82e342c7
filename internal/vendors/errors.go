package vendors

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownVendor indicates no adapter factory is registered for the vendor.
	ErrUnknownVendor = errors.New("unknown vendor")
	// ErrInvalidConfig indicates adapter configuration is missing required keys.
	ErrInvalidConfig = errors.New("invalid vendor configuration")
)

// FetchError wraps a transient failure talking to a vendor source. Callers
// retry with backoff rather than treating the connection as broken.
type FetchError struct {
	Vendor string
	Op     string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Vendor, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps err as a transient vendor fetch failure.
func NewFetchError(vendor, op string, err error) *FetchError {
	return &FetchError{Vendor: vendor, Op: op, Err: err}
}

// IsTransient reports whether err is a retryable vendor fetch failure.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
