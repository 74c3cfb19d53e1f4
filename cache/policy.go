package cache

import "time"

// Policy configures entry retention, freshness, and polling.
type Policy struct {
	// KeepUnusedFor is how long an entry survives after its last subscriber
	// leaves. Zero evicts immediately.
	KeepUnusedFor time.Duration

	// StaleAfter marks a successful entry stale once it is this old.
	// Zero keeps entries fresh until they are invalidated.
	StaleAfter time.Duration

	// DefaultPollInterval applies to subscriptions that do not set their own.
	// Zero disables polling by default.
	DefaultPollInterval time.Duration
}

// DefaultPolicy returns the default cache policy.
// KeepUnusedFor: 60 seconds, StaleAfter: 0, DefaultPollInterval: 0
func DefaultPolicy() Policy {
	return Policy{
		KeepUnusedFor: 60 * time.Second,
	}
}

// Validate rejects negative durations.
func (p Policy) Validate() error {
	if p.KeepUnusedFor < 0 || p.StaleAfter < 0 || p.DefaultPollInterval < 0 {
		return ErrInvalidPolicy
	}
	return nil
}

// Expired reports whether a result fetched at fetchedAt is past StaleAfter.
func (p Policy) Expired(fetchedAt, now time.Time) bool {
	if p.StaleAfter <= 0 {
		return false
	}
	return now.Sub(fetchedAt) >= p.StaleAfter
}

// PollInterval resolves a requested interval against the default.
// Negative requests disable polling.
func (p Policy) PollInterval(requested time.Duration) time.Duration {
	switch {
	case requested > 0:
		return requested
	case requested < 0:
		return 0
	default:
		return p.DefaultPollInterval
	}
}
