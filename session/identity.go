package session

import (
	"slices"
	"time"
)

// Identity is the signed-in user as described by the token claims.
type Identity struct {
	// Principal is the user id (sub claim).
	Principal string

	// DealerID is the dealership the user belongs to.
	DealerID string

	// Roles are the sales roles granted to the user.
	Roles []string

	// Claims contains the raw token claims.
	Claims map[string]any

	ExpiresAt time.Time
	IssuedAt  time.Time
}

// HasRole checks if the identity has a specific role.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// IsExpired reports whether the token expired before now.
// Tokens without an exp claim never expire.
func (id *Identity) IsExpired(now time.Time) bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return now.After(id.ExpiresAt)
}

// IsAnonymous returns true if no principal is known.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.Principal == ""
}
