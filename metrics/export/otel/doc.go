// Package otel binds engine metrics to OpenTelemetry instruments.
//
// [NewExporter] registers an Int64ObservableCounter for each engine counter, an
// Int64ObservableGauge per fetch latency bucket, and gauges for mounted consumers
// and the auth listener. One callback reads the engine on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
