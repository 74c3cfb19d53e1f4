package exporters

import (
	"context"
	"io"
	"testing"
)

func TestNewTracingExporter(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"stdout", "none", ""} {
		exp, err := NewTracingExporter(ctx, name, io.Discard)
		if err != nil {
			t.Fatalf("NewTracingExporter(%q) error = %v", name, err)
		}
		_ = exp.Shutdown(ctx)
	}
	if _, err := NewTracingExporter(ctx, "zipkin", nil); err == nil {
		t.Error("expected error for unknown exporter")
	}
}

func TestNewTracingExporter_OTLPRequiresEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	if _, err := NewTracingExporter(context.Background(), "otlp", nil); err == nil {
		t.Error("expected error without endpoint")
	}
}

func TestNewMetricsReader(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"stdout", "prometheus", "none"} {
		reader, err := NewMetricsReader(ctx, name, io.Discard)
		if err != nil {
			t.Fatalf("NewMetricsReader(%q) error = %v", name, err)
		}
		_ = reader.Shutdown(ctx)
	}
	if _, err := NewMetricsReader(ctx, "statsd", nil); err == nil {
		t.Error("expected error for unknown exporter")
	}
}
