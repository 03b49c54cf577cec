package goFlag

import (
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/goFlag/internal/audit"
)

// AuditEvent is a structured record describing a flag submission outcome or
// a key lifecycle operation. Events are delivered asynchronously through the
// configured [AuditSink].
type AuditEvent = internalaudit.Event

// AuditSink receives audit events. Implementations must be safe for
// concurrent use.
type AuditSink = internalaudit.Sink

// NoOpSink discards all audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards audit events to a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON-encoded audit event per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogSink writes audit events as slog records, at warn level for failed
// outcomes.
type LogSink = internalaudit.LogSink

// AuditStats reports audit delivery counters.
type AuditStats = internalaudit.Stats

// NewChannelSink creates a [ChannelSink] with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLogSink creates a [LogSink]. A nil logger uses [slog.Default].
func NewLogSink(logger *slog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}
