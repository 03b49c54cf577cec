// Package audit implements async event dispatching for flag submission outcomes
// and key lifecycle operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full
//     semantics. It counts drops per event type, survives panicking sinks and
//     flushes its queue on Close.
//   - [Event]: structured audit record with timestamp, type, user, module, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine and flow functions do.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goFlag or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
