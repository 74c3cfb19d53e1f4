package alerts

import (
	"errors"

	"github.com/jonwraymond/salesync/cache"
	"github.com/jonwraymond/salesync/persist"
	"github.com/jonwraymond/salesync/transport"
)

// Class is the kind of failure behind an error.
type Class int

const (
	// ClassUnknown is an error no layer normalized.
	ClassUnknown Class = iota
	// ClassTransport means the request never reached the server.
	ClassTransport
	// ClassServer means the server answered with a non-2xx status.
	ClassServer
	// ClassMigration means a persisted snapshot could not be upgraded.
	ClassMigration
	// ClassInvariant is a defect inside the sync core.
	ClassInvariant
)

func (c Class) String() string {
	switch c {
	case ClassTransport:
		return "transport"
	case ClassServer:
		return "server"
	case ClassMigration:
		return "migration"
	case ClassInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// UserFacing reports whether errors of this class produce an alert.
func (c Class) UserFacing() bool {
	return c == ClassTransport || c == ClassServer || c == ClassUnknown
}

// Classify returns the class of err.
func Classify(err error) Class {
	if te, ok := transport.AsError(err); ok {
		if te.Kind == transport.KindServer {
			return ClassServer
		}
		return ClassTransport
	}
	switch {
	case errors.Is(err, cache.ErrInvariant):
		return ClassInvariant
	case errors.Is(err, persist.ErrMigrationFailed),
		errors.Is(err, persist.ErrMissingMigration),
		errors.Is(err, persist.ErrFutureVersion):
		return ClassMigration
	}
	return ClassUnknown
}

// Message returns the text shown to the user for err.
func Message(err error) string {
	if te, ok := transport.AsError(err); ok && te.Message != "" {
		return te.Message
	}
	return transport.DefaultMessage
}
