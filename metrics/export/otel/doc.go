// Package otel publishes goFlag metrics through an OpenTelemetry Meter.
//
// [NewOTelExporter] registers one observable instrument per engine counter,
// one gauge per latency bucket, and the audit drop and storage backend
// families. Per-type audit drops carry an event_type attribute. A single
// callback reads the engine on each collection.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider: callers supply the Meter.
//   - Mutate engine state.
package otel
