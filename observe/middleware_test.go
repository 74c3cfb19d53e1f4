package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMiddleware_Wrap(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewCacheMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	mw := NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("debug", &buf))

	failing := errors.New("timeout")
	calls := 0
	wrapped := mw.Wrap(func(ctx context.Context, meta RequestMeta) (int, error) {
		calls++
		if meta.Path == "/fail" {
			return 0, failing
		}
		return 200, nil
	})

	ctx := context.Background()
	if status, err := wrapped(ctx, RequestMeta{Method: "GET", Path: "/ok", Endpoint: "ok"}); err != nil || status != 200 {
		t.Fatalf("wrapped ok = (%d, %v)", status, err)
	}
	if _, err := wrapped(ctx, RequestMeta{Method: "GET", Path: "/fail", Endpoint: "fail"}); !errors.Is(err, failing) {
		t.Fatalf("expected error to propagate unchanged, got %v", err)
	}

	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if n := len(recorder.Ended()); n != 2 {
		t.Errorf("expected 2 spans, got %d", n)
	}
	rm := collect(t, reader)
	if got := sumValue(t, rm, "query.cache.fetch_errors"); got != 1 {
		t.Errorf("fetch_errors = %d, want 1", got)
	}
	entries := decodeLines(t, &buf)
	if len(entries) != 2 || entries[1]["msg"] != "request failed" {
		t.Errorf("unexpected log entries: %v", entries)
	}
}

func TestNewMiddleware_NilComponents(t *testing.T) {
	mw := NewMiddleware(nil, nil, nil)
	wrapped := mw.Wrap(func(context.Context, RequestMeta) (int, error) { return 204, nil })
	if status, err := wrapped(context.Background(), RequestMeta{Method: "DELETE", Path: "/x"}); err != nil || status != 204 {
		t.Fatalf("wrapped = (%d, %v)", status, err)
	}
}
