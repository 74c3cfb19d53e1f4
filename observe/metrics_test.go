package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("%s metric not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

// TestCacheMetrics_Counters verifies each recorder feeds its counter.
func TestCacheMetrics_Counters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewCacheMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	ctx := context.Background()
	m.RecordHit(ctx, "customers")
	m.RecordHit(ctx, "customers")
	m.RecordFetch(ctx, "customers", 20*time.Millisecond, nil)
	m.RecordFetch(ctx, "customers", 5*time.Millisecond, errors.New("offline"))
	m.RecordInvalidation(ctx, 2, 3)
	m.RecordEviction(ctx, "customers")

	rm := collect(t, reader)

	tests := []struct {
		name string
		want int64
	}{
		{"query.cache.hits", 2},
		{"query.cache.fetches", 2},
		{"query.cache.fetch_errors", 1},
		{"query.cache.invalidations", 5},
		{"query.cache.evictions", 1},
	}
	for _, tt := range tests {
		if got := sumValue(t, rm, tt.name); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}

	hist := findMetric(rm, "query.fetch.duration_ms")
	if hist == nil {
		t.Fatal("query.fetch.duration_ms metric not found")
	}
	h, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", hist.Data)
	}
	if h.DataPoints[0].Count != 2 {
		t.Errorf("expected 2 histogram samples, got %d", h.DataPoints[0].Count)
	}
}

func TestNewCacheMetrics_NilMeter(t *testing.T) {
	m, err := NewCacheMetrics(nil)
	if err != nil {
		t.Fatalf("NewCacheMetrics(nil) error = %v", err)
	}
	m.RecordHit(context.Background(), "x")
}
