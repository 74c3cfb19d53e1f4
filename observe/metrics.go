package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// CacheMetrics records query cache and request activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type CacheMetrics interface {
	// RecordHit records a read served from a fresh cache entry.
	RecordHit(ctx context.Context, endpoint string)

	// RecordFetch records one completed transport call for a query or mutation.
	RecordFetch(ctx context.Context, endpoint string, duration time.Duration, err error)

	// RecordInvalidation records one invalidation batch and how many keys it touched.
	RecordInvalidation(ctx context.Context, refetched, evicted int)

	// RecordEviction records an entry dropped from the cache.
	RecordEviction(ctx context.Context, endpoint string)
}

type cacheMetrics struct {
	hits          metric.Int64Counter
	fetches       metric.Int64Counter
	fetchErrors   metric.Int64Counter
	invalidations metric.Int64Counter
	evictions     metric.Int64Counter
	fetchDuration metric.Float64Histogram
}

// NewCacheMetrics creates CacheMetrics on the given meter.
func NewCacheMetrics(meter metric.Meter) (CacheMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("noop")
	}

	m := &cacheMetrics{}
	var err error

	if m.hits, err = meter.Int64Counter(
		"query.cache.hits",
		metric.WithDescription("Reads served from a fresh cache entry"),
		metric.WithUnit("{read}"),
	); err != nil {
		return nil, err
	}
	if m.fetches, err = meter.Int64Counter(
		"query.cache.fetches",
		metric.WithDescription("Transport calls issued by the cache engine"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}
	if m.fetchErrors, err = meter.Int64Counter(
		"query.cache.fetch_errors",
		metric.WithDescription("Transport calls that ended in an error"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.invalidations, err = meter.Int64Counter(
		"query.cache.invalidations",
		metric.WithDescription("Cache keys touched by tag invalidation"),
		metric.WithUnit("{key}"),
	); err != nil {
		return nil, err
	}
	if m.evictions, err = meter.Int64Counter(
		"query.cache.evictions",
		metric.WithDescription("Cache entries removed"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}
	if m.fetchDuration, err = meter.Float64Histogram(
		"query.fetch.duration_ms",
		metric.WithDescription("Transport call duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *cacheMetrics) RecordHit(ctx context.Context, endpoint string) {
	m.hits.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

func (m *cacheMetrics) RecordFetch(ctx context.Context, endpoint string, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("endpoint", endpoint))
	m.fetches.Add(ctx, 1, opt)
	if err != nil {
		m.fetchErrors.Add(ctx, 1, opt)
	}
	m.fetchDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *cacheMetrics) RecordInvalidation(ctx context.Context, refetched, evicted int) {
	m.invalidations.Add(ctx, int64(refetched), metric.WithAttributes(attribute.String("action", "refetch")))
	m.invalidations.Add(ctx, int64(evicted), metric.WithAttributes(attribute.String("action", "evict")))
}

func (m *cacheMetrics) RecordEviction(ctx context.Context, endpoint string) {
	m.evictions.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// NopCacheMetrics returns a CacheMetrics that records nothing.
func NopCacheMetrics() CacheMetrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) RecordHit(context.Context, string)                         {}
func (nopMetrics) RecordFetch(context.Context, string, time.Duration, error) {}
func (nopMetrics) RecordInvalidation(context.Context, int, int)              {}
func (nopMetrics) RecordEviction(context.Context, string)                    {}
