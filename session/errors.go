package session

import "errors"

// Sentinel errors for session operations.
var (
	ErrNoToken        = errors.New("session: no token")
	ErrTokenMalformed = errors.New("session: token malformed")
	ErrTokenExpired   = errors.New("session: token expired")
)
