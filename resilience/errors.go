package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrBulkheadFull is returned when no request slot frees up in time.
	ErrBulkheadFull = errors.New("resilience: too many requests in flight")

	// ErrTimeout is returned when a request exceeds its deadline.
	ErrTimeout = errors.New("resilience: request timed out")
)
