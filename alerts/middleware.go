package alerts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/salesync/cache"
	"github.com/jonwraymond/salesync/observe"
	"github.com/jonwraymond/salesync/transport"
)

// Alert is one user-visible notification.
type Alert struct {
	Class   Class
	Message string

	// Status is the HTTP status for server errors.
	Status int

	// Source is the query key or mutation endpoint that failed.
	Source string

	At time.Time
}

// Presenter displays alerts. Show is called without Middleware locks held.
type Presenter interface {
	Show(ctx context.Context, a Alert)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, a Alert)

// Show implements Presenter.
func (f PresenterFunc) Show(ctx context.Context, a Alert) {
	f(ctx, a)
}

// Option configures a Middleware.
type Option func(*Middleware)

// WithLogger sets the middleware logger.
func WithLogger(l observe.Logger) Option {
	return func(m *Middleware) {
		m.logger = l
	}
}

// WithClock sets the time source used to stamp alerts.
func WithClock(now func() time.Time) Option {
	return func(m *Middleware) {
		m.now = now
	}
}

// Middleware reports failures with at most one outstanding alert.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - While an alert is outstanding, further user-facing failures are logged
//   and counted but not shown. Dismiss clears the outstanding alert.
// - Invariant and migration errors are never shown.
type Middleware struct {
	presenter Presenter
	logger    observe.Logger
	now       func() time.Time

	mu         sync.Mutex
	current    *Alert
	suppressed int
}

// New creates a Middleware that shows alerts through p. A nil p only logs.
func New(p Presenter, opts ...Option) *Middleware {
	m := &Middleware{
		presenter: p,
		logger:    observe.NopLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Report classifies err and shows an alert when none is outstanding. It
// reports whether an alert was shown.
func (m *Middleware) Report(ctx context.Context, source string, err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, cache.ErrReset) {
		return false
	}

	class := Classify(err)
	switch class {
	case ClassInvariant:
		m.logger.Error(ctx, "sync core invariant violated",
			observe.F("source", source), observe.F("invariant", true), observe.Err(err))
		return false
	case ClassMigration:
		m.logger.Warn(ctx, "persisted state fell back to defaults",
			observe.F("reason", "migration_failed"), observe.Err(err))
		return false
	}

	a := Alert{Class: class, Message: Message(err), Source: source, At: m.now()}
	if te, ok := transport.AsError(err); ok {
		a.Status = te.Status
	}

	m.mu.Lock()
	if m.current != nil {
		m.suppressed++
		m.mu.Unlock()
		m.logger.Debug(ctx, "alert suppressed",
			observe.F("class", class.String()), observe.F("source", source), observe.Err(err))
		return false
	}
	m.current = &a
	m.mu.Unlock()

	m.logger.Warn(ctx, "request failed",
		observe.F("class", class.String()),
		observe.F("source", source),
		observe.F("status", a.Status),
		observe.Err(err))
	if m.presenter != nil {
		m.presenter.Show(ctx, a)
	}
	return true
}

// Dismiss clears the outstanding alert and returns how many failures were
// suppressed while it was shown.
func (m *Middleware) Dismiss() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.suppressed
	m.current = nil
	m.suppressed = 0
	return n
}

// Current returns the outstanding alert, if any.
func (m *Middleware) Current() (Alert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Alert{}, false
	}
	return *m.current, true
}

// Handler adapts Report to the cache engine error hook.
func (m *Middleware) Handler() cache.ErrorHandler {
	return func(ctx context.Context, key string, err error) {
		m.Report(ctx, key, err)
	}
}
