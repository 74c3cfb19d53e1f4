package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jonwraymond/salesync/persist"
	"github.com/jonwraymond/salesync/transport"
)

// Status is the health of a component.
type Status int

const (
	// StatusHealthy means the component answers normally.
	StatusHealthy Status = iota
	// StatusDegraded means the component answers, but with errors.
	StatusDegraded
	// StatusUnhealthy means the component cannot be reached.
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Reachable reports whether requests can get through. Degraded counts as
// reachable: the server answered.
func (s Status) Reachable() bool {
	return s == StatusHealthy || s == StatusDegraded
}

// Result is the outcome of one check.
type Result struct {
	Status    Status
	Message   string
	Duration  time.Duration
	Timestamp time.Time
	Error     error
}

// Healthy returns a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message, Timestamp: time.Now()}
}

// Degraded returns a degraded result.
func Degraded(message string, err error) Result {
	return Result{Status: StatusDegraded, Message: message, Error: err, Timestamp: time.Now()}
}

// Unhealthy returns an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err, Timestamp: time.Now()}
}

// Checker reports the health of one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc returns a Checker named name that runs fn.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name implements Checker.
func (f *CheckerFunc) Name() string { return f.name }

// Check implements Checker.
func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }

// Doer executes one API request.
type Doer interface {
	Do(ctx context.Context, req transport.Request) (transport.Response, error)
}

// APIChecker probes the remote API with a GET on path.
type APIChecker struct {
	doer Doer
	path string
}

// NewAPIChecker returns a checker for the API behind d.
func NewAPIChecker(d Doer, path string) *APIChecker {
	if path == "" {
		path = "/health"
	}
	return &APIChecker{doer: d, path: path}
}

// Name implements Checker.
func (c *APIChecker) Name() string { return "api" }

// Check implements Checker. Any server answer, even a 5xx, proves the
// network path works and is reported as degraded rather than unhealthy.
func (c *APIChecker) Check(ctx context.Context) Result {
	_, err := c.doer.Do(ctx, transport.Request{Method: http.MethodGet, Path: c.path, Endpoint: "health"})
	if err == nil {
		return Healthy("api reachable")
	}
	if te, ok := transport.AsError(err); ok && te.Kind == transport.KindServer {
		return Degraded(te.Message, err)
	}
	return Unhealthy("api unreachable", err)
}

// BackendChecker probes a snapshot backend by loading from it.
type BackendChecker struct {
	backend persist.Backend
}

// NewBackendChecker returns a checker for b.
func NewBackendChecker(b persist.Backend) *BackendChecker {
	return &BackendChecker{backend: b}
}

// Name implements Checker.
func (c *BackendChecker) Name() string { return "snapshot" }

// Check implements Checker. An empty backend is healthy.
func (c *BackendChecker) Check(ctx context.Context) Result {
	_, err := c.backend.Load(ctx)
	if err == nil || errors.Is(err, persist.ErrNotFound) {
		return Healthy("snapshot backend readable")
	}
	return Unhealthy("snapshot backend unreadable", err)
}

var (
	_ Checker = (*CheckerFunc)(nil)
	_ Checker = (*APIChecker)(nil)
	_ Checker = (*BackendChecker)(nil)
)
