// Package prometheus renders goFlag metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] reads an [goFlag.Engine] and exposes an
// [http.Handler]. Besides the engine counters and the submit latency
// histogram it publishes audit drops, in total and per event type, and a
// goflag_storage_backend_info gauge naming the storage backend.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry: callers mount the Handler.
//   - Mutate engine state.
package prometheus
