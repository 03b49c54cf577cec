// Package internaldefs holds the metric table shared by the goFlag exporters.
//
// [Defs] maps every engine MetricID to its exported name, unit and help text.
// The latency bucket bounds, the audit drop families and the storage backend
// info family are defined here too, so the Prometheus and OTel exporters
// publish identical names.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
