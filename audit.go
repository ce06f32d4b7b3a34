package warden

import (
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/warden/internal/audit"
)

// AuditEvent is a security-relevant occurrence emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// Sink implementations.
type (
	NoOpSink       = internalaudit.NoOpSink
	ChannelSink    = internalaudit.ChannelSink
	JSONWriterSink = internalaudit.JSONWriterSink
	KafkaSink      = internalaudit.KafkaSink
)

// KafkaWriter is satisfied by *kafka.Writer from segmentio/kafka-go.
type KafkaWriter = internalaudit.MessageWriter

// NewChannelSink returns a sink that buffers events in a channel.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that writes one JSON object per line.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewKafkaSink returns a sink publishing JSON events through w, keyed by
// account id.
func NewKafkaSink(w KafkaWriter, timeout time.Duration, logger *slog.Logger) *KafkaSink {
	return internalaudit.NewKafkaSink(w, timeout, logger)
}
