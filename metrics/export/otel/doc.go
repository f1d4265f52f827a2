// Package otel provides OpenTelemetry metric exporter bindings for authcore counters.
//
// [NewOTelExporter] registers Int64ObservableCounter instruments for each authcore
// metric. A single callback reads [authcore.Client.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate client state.
package otel
