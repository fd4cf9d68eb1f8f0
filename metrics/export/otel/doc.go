// Package otel exposes gateway counters through OpenTelemetry observable
// instruments.
//
// [New] registers one Int64ObservableCounter per gateway counter and one
// Int64ObservableGauge per refresh latency bucket. A single callback reads
// [goAuthClient.Gateway.MetricsSnapshot] on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate gateway state.
package otel
