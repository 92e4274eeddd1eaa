package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
)

type outboxRepo interface {
	ClaimPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause string) error
}

type publisher interface {
	Publish(ctx context.Context, msg domain.OutboxMessage) error
}

type outboxRecorder interface {
	OutboxResult(topic string, err error)
}

// OutboxRelay forwards committed outbox messages to the broker. Delivery is at
// least once: a message is marked sent only after the broker accepted it.
type OutboxRelay struct {
	outbox    outboxRepo
	publisher publisher
	metrics   outboxRecorder
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewOutboxRelay(outbox outboxRepo, pub publisher, metrics outboxRecorder, logger *slog.Logger, interval time.Duration) *OutboxRelay {
	return &OutboxRelay{
		outbox:    outbox,
		publisher: pub,
		metrics:   metrics,
		logger:    logger,
		interval:  interval,
		batchSize: 50,
	}
}

func (r *OutboxRelay) Start(ctx context.Context) {
	r.logger.Info("outbox relay started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			r.Poll(ctx)
		}
	}
}

// Poll relays one batch and returns how many messages were sent.
func (r *OutboxRelay) Poll(ctx context.Context) int {
	msgs, err := r.outbox.ClaimPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("failed to claim outbox messages", "error", err)
		return 0
	}

	sent := 0
	for _, msg := range msgs {
		err := r.publisher.Publish(ctx, msg)
		if r.metrics != nil {
			r.metrics.OutboxResult(msg.Topic, err)
		}
		if err != nil {
			r.logger.Warn("outbox publish failed",
				"message_id", msg.ID,
				"topic", msg.Topic,
				"attempts", msg.Attempts,
				"error", err,
			)
			if err := r.outbox.MarkFailed(ctx, msg.ID, err.Error()); err != nil {
				r.logger.Error("failed to record outbox failure", "message_id", msg.ID, "error", err)
			}
			continue
		}

		if err := r.outbox.MarkSent(ctx, msg.ID); err != nil {
			// The lease expires and the message is sent again.
			r.logger.Error("failed to mark outbox message sent", "message_id", msg.ID, "error", err)
			continue
		}
		sent++
	}
	return sent
}
