package health

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/salesync/observe"
)

// ConnectivityOption configures a Connectivity.
type ConnectivityOption func(*Connectivity)

// WithInterval sets how often Run probes. Default: 15 seconds.
func WithInterval(d time.Duration) ConnectivityOption {
	return func(c *Connectivity) {
		if d > 0 {
			c.interval = d
		}
	}
}

// OnReconnect registers fn for the offline to online edge.
func OnReconnect(fn func(context.Context) error) ConnectivityOption {
	return func(c *Connectivity) {
		c.onReconnect = fn
	}
}

// OnDisconnect registers fn for the online to offline edge.
func OnDisconnect(fn func(context.Context)) ConnectivityOption {
	return func(c *Connectivity) {
		c.onDisconnect = fn
	}
}

// WithConnectivityLogger sets the logger.
func WithConnectivityLogger(l observe.Logger) ConnectivityOption {
	return func(c *Connectivity) {
		c.logger = l
	}
}

// Connectivity tracks whether the API is reachable and fires callbacks on
// transitions.
//
// Contract:
// - Concurrency: safe for concurrent use; callbacks run without locks held.
// - The first probe only records the state; callbacks fire on changes.
type Connectivity struct {
	checker      Checker
	interval     time.Duration
	onReconnect  func(context.Context) error
	onDisconnect func(context.Context)
	logger       observe.Logger

	mu     sync.Mutex
	known  bool
	online bool
}

// NewConnectivity returns a Connectivity probing c.
func NewConnectivity(c Checker, opts ...ConnectivityOption) (*Connectivity, error) {
	if c == nil {
		return nil, ErrNilChecker
	}
	conn := &Connectivity{
		checker:  c,
		interval: 15 * time.Second,
		logger:   observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(conn)
	}
	return conn, nil
}

// Online reports the last observed state. Before the first probe it is false.
func (c *Connectivity) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// Probe runs one check, records the state and fires any transition callback.
func (c *Connectivity) Probe(ctx context.Context) Result {
	r := run(ctx, c.checker)
	online := r.Status.Reachable()

	c.mu.Lock()
	changed := c.known && online != c.online
	c.known = true
	c.online = online
	c.mu.Unlock()

	if !changed {
		return r
	}
	if online {
		c.logger.Info(ctx, "api reachable again", observe.F("checker", c.checker.Name()))
		if c.onReconnect != nil {
			if err := c.onReconnect(ctx); err != nil {
				c.logger.Warn(ctx, "reconnect handler failed", observe.Err(err))
			}
		}
		return r
	}
	c.logger.Warn(ctx, "api unreachable", observe.F("checker", c.checker.Name()), observe.Err(r.Error))
	if c.onDisconnect != nil {
		c.onDisconnect(ctx)
	}
	return r
}

// Run probes immediately and then every interval until ctx ends.
func (c *Connectivity) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Probe(ctx)
		}
	}
}
