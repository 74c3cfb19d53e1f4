// Package observe provides the logging, metrics and tracing used by the sync core.
//
// It is a pure instrumentation library: the cache engine, transport and
// persisted-state store accept its Logger, CacheMetrics and Tracer and never
// reach for global telemetry state on their own.
package observe
