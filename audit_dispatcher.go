package warden

import (
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/warden/internal/audit"
)

// newAuditDispatcher returns nil when auditing is disabled; a nil dispatcher
// ignores Emit and Close. When no sink was supplied but Kafka brokers are
// configured, a Kafka writer is created and returned so the engine can
// close it.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *slog.Logger) (*internalaudit.Dispatcher, io.Closer) {
	if !cfg.Enabled {
		return nil, nil
	}

	var closer io.Closer
	if sink == nil && len(cfg.KafkaBrokers) > 0 {
		w := internalaudit.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		sink = internalaudit.NewKafkaSink(w, 0, logger)
		closer = w
	}

	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:      cfg.Enabled,
		BufferSize:   cfg.BufferSize,
		DropIfFull:   cfg.DropIfFull,
		DrainTimeout: cfg.DrainTimeout,
		Logger:       logger,
	}, sink), closer
}
