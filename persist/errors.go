package persist

import "errors"

var (
	// ErrNotFound is returned by a Backend when no snapshot has been saved.
	ErrNotFound = errors.New("persist: no snapshot")

	// ErrMissingMigration is returned when the chain has no step for a version.
	ErrMissingMigration = errors.New("persist: missing migration")

	// ErrFutureVersion is returned for a snapshot newer than the running schema.
	ErrFutureVersion = errors.New("persist: snapshot version is newer than schema")

	// ErrMigrationFailed wraps an error returned by a migration step.
	ErrMigrationFailed = errors.New("persist: migration failed")

	// ErrInvalidVersion is returned for a schema version below 1.
	ErrInvalidVersion = errors.New("persist: schema version must be positive")

	// ErrNilBackend is returned by NewStore without a backend.
	ErrNilBackend = errors.New("persist: backend is nil")
)
