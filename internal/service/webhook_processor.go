package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
	"github.com/josh-kwaku/pix-ledger/internal/service/settlement"
)

type webhookRepo interface {
	ClaimPending(ctx context.Context, limit int) ([]domain.WebhookEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WebhookEventStatus) error
}

type settler interface {
	ApplyGatewayEvent(ctx context.Context, externalID, gatewayStatus string) (settlement.Result, error)
}

// An event naming an unknown external id is failed on its unknownEventAttempts-th
// claim. A payout's external id is recorded after the gateway call returns, so
// its callback can arrive first.
const unknownEventAttempts = 5

var errNotYetKnown = errors.New("external id not known yet")

// WebhookProcessor drains stored gateway webhooks into the settlement processor.
// Events that fail for transient reasons stay pending and are picked up again
// once their lease runs out.
type WebhookProcessor struct {
	webhooks        webhookRepo
	settler         settler
	logger          *slog.Logger
	interval        time.Duration
	batchSize       int
	unknownAttempts int
}

func NewWebhookProcessor(webhooks webhookRepo, settler settler, logger *slog.Logger, interval time.Duration) *WebhookProcessor {
	return &WebhookProcessor{
		webhooks:        webhooks,
		settler:         settler,
		logger:          logger,
		interval:        interval,
		batchSize:       20,
		unknownAttempts: unknownEventAttempts,
	}
}

func (p *WebhookProcessor) Start(ctx context.Context) {
	p.logger.Info("webhook processor started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("webhook processor stopped")
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll processes one batch and returns how many events reached a final status.
func (p *WebhookProcessor) Poll(ctx context.Context) int {
	events, err := p.webhooks.ClaimPending(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("failed to claim pending webhook events", "error", err)
		return 0
	}

	done := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			if errors.Is(err, errNotYetKnown) {
				p.logger.Info("webhook event deferred",
					"webhook_event_id", event.ID,
					"attempts", event.Attempts,
				)
				continue
			}
			p.logger.Error("failed to process webhook event",
				"webhook_event_id", event.ID,
				"attempts", event.Attempts,
				"error", err,
			)
			continue
		}
		done++
	}
	return done
}

func (p *WebhookProcessor) processEvent(ctx context.Context, event domain.WebhookEvent) error {
	ctx = logging.WithLogger(ctx, p.logger.With("webhook_event_id", event.ID))
	log := logging.FromContext(ctx)

	var payload domain.WebhookPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.ID == "" {
		log.Error("malformed webhook payload", "error", err)
		return p.webhooks.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusFailed)
	}

	start := time.Now()
	result, err := p.settler.ApplyGatewayEvent(ctx, payload.ID, payload.Status)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnknownDeposit) && event.Attempts < p.unknownAttempts:
		return fmt.Errorf("processEvent: %s: %w", payload.ID, errNotYetKnown)
	case errors.Is(err, domain.ErrUnknownDeposit), errors.Is(err, domain.ErrValidation):
		log.Warn("webhook event cannot be applied", "external_id", payload.ID, "error", err)
		return p.webhooks.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusFailed)
	default:
		return fmt.Errorf("processEvent: %w", err)
	}

	log.Info("webhook event applied",
		"external_id", payload.ID,
		"result", result,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return p.webhooks.UpdateStatus(ctx, event.ID, domain.WebhookEventStatusProcessed)
}
