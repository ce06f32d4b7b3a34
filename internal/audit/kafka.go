package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by [KafkaSink].
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink publishes events as JSON, keyed by account id so one
// account's history stays on one partition.
type KafkaSink struct {
	writer  MessageWriter
	timeout time.Duration
	logger  *slog.Logger
}

// NewKafkaWriter builds a writer for topic with settings suited to audit
// traffic: hash balancing on the key and synchronous acks from the leader.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaSink wraps w. A zero timeout means 5s per publish.
func NewKafkaSink(w MessageWriter, timeout time.Duration, logger *slog.Logger) *KafkaSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &KafkaSink{writer: w, timeout: timeout, logger: logger}
}

// Emit publishes one event within the sink timeout. Failures are logged
// and dropped; the operation that produced the event never sees them.
func (s *KafkaSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AccountID),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Warn("audit publish failed", "event_type", event.EventType, "err", err)
	}
}
