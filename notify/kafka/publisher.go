// Package kafka publishes ledger notification records to a Kafka topic.
// Records are JSON-encoded notify.Record payloads keyed by the record's
// primary account, so per-account consumers see their events in order.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/pflow-xyz/go-ledger/notify"
	"github.com/pflow-xyz/go-ledger/token"
)

// Publisher is a token.Sink backed by a kafka writer.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewPublisher creates a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
		logger: logger,
	}
}

// Emit implements token.Sink. Ledger state has already committed, so
// delivery failures are logged, never propagated.
func (p *Publisher) Emit(e token.Event) {
	record := notify.Flatten(e)
	data, err := json.Marshal(record)
	if err != nil {
		p.logger.Error("encode notification", slog.String("type", record.Type), slog.String("error", err.Error()))
		return
	}

	msg := kafka.Message{Value: data}
	if key := record.Key(); key != "" {
		msg.Key = []byte(key)
	}
	if err := p.writer.WriteMessages(context.Background(), msg); err != nil {
		p.logger.Error("publish notification", slog.String("type", record.Type), slog.String("error", err.Error()))
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ token.Sink = (*Publisher)(nil)
