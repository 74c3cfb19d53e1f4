package health

import "errors"

var (
	// ErrCheckTimeout is recorded when a checker does not answer in time.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound is returned for an unknown checker name.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrNilChecker is returned when a nil checker is supplied.
	ErrNilChecker = errors.New("health: checker is nil")
)
