package resilience

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultMaxConcurrent is used when BulkheadConfig.MaxConcurrent is not set.
const DefaultMaxConcurrent = 6

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the maximum number of requests in flight.
	// Default: 6
	MaxConcurrent int

	// MaxWait is how long a request may queue for a slot.
	// Zero waits until the caller's context ends.
	MaxWait time.Duration
}

// Bulkhead caps the number of API requests in flight. Requests over the cap
// wait for a slot to free up.
type Bulkhead struct {
	slots   chan struct{}
	maxWait time.Duration

	inFlight atomic.Int64
	queued   atomic.Int64
	peak     atomic.Int64
	rejected atomic.Int64
}

// NewBulkhead creates a Bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Bulkhead{
		slots:   make(chan struct{}, config.MaxConcurrent),
		maxWait: config.MaxWait,
	}
}

// Acquire takes a slot. It returns ErrBulkheadFull once MaxWait has passed,
// or the context error if ctx ends first.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.slots <- struct{}{}:
		b.enter()
		return nil
	default:
	}

	b.queued.Add(1)
	defer b.queued.Add(-1)

	var expired <-chan time.Time
	if b.maxWait > 0 {
		timer := time.NewTimer(b.maxWait)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case b.slots <- struct{}{}:
		b.enter()
		return nil
	case <-expired:
		b.rejected.Add(1)
		return ErrBulkheadFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bulkhead) enter() {
	n := b.inFlight.Add(1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

// Release frees a slot taken by Acquire.
func (b *Bulkhead) Release() {
	select {
	case <-b.slots:
		b.inFlight.Add(-1)
	default:
	}
}

// Execute runs op while holding a slot.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// Stats returns a point-in-time view of the bulkhead.
func (b *Bulkhead) Stats() BulkheadStats {
	return BulkheadStats{
		Capacity: cap(b.slots),
		InFlight: int(b.inFlight.Load()),
		Queued:   int(b.queued.Load()),
		Peak:     int(b.peak.Load()),
		Rejected: b.rejected.Load(),
	}
}

// BulkheadStats are the bulkhead counters.
type BulkheadStats struct {
	Capacity int
	InFlight int
	Queued   int
	Peak     int
	Rejected int64
}
