package events

import (
	"context"
	"log/slog"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
)

// Publisher hands an outbox message to a broker. Publish must be safe to call
// again with the same message; consumers deduplicate on the message id.
type Publisher interface {
	Publish(ctx context.Context, msg domain.OutboxMessage) error
	Close() error
}

// LogPublisher writes messages to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, msg domain.OutboxMessage) error {
	p.logger.Info("domain event",
		"message_id", msg.ID,
		"topic", msg.Topic,
		"key", msg.Key,
		"payload", string(msg.Payload),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

const (
	headerMessageID = "message_id"
	headerTopic     = "topic"
)
