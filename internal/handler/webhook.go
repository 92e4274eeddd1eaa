package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
)

type webhookEventRepository interface {
	Create(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookHandler stores signed gateway callbacks for the webhook processor.
// Settlement happens asynchronously so the gateway gets a fast acknowledgement.
type WebhookHandler struct {
	webhooks webhookEventRepository
	secret   string
}

func NewWebhookHandler(webhooks webhookEventRepository, secret string) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, secret: secret}
}

func validateWebhook(p domain.WebhookPayload) []FieldError {
	var errs []FieldError
	if p.ID == "" {
		errs = append(errs, FieldError{Field: "id", Message: "required"})
	}
	if p.Status == "" {
		errs = append(errs, FieldError{Field: "status", Message: "required"})
	} else if _, err := domain.ParseGatewayStatus(p.Status); err != nil {
		errs = append(errs, FieldError{Field: "status", Message: "must be paid, reproved, or rejected"})
	}
	return errs
}

func (h *WebhookHandler) ReceiveFlowpag(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	sig := r.Header.Get("X-Webhook-Signature")
	if !verifyHMAC(body, sig, h.secret) {
		log.Warn("webhook signature verification failed")
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	var payload domain.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("failed to parse webhook payload", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := validateWebhook(payload); len(fields) > 0 {
		log.Warn("webhook payload rejected", "external_id", payload.ID, "status", payload.Status)
		RespondValidationError(w, fields)
		return
	}

	status := domain.GatewayStatus(payload.Status)
	event := &domain.WebhookEvent{
		ID:             uuid.New(),
		IdempotencyKey: payload.ID + ":" + payload.Status,
		EventType:      domain.WebhookEventTypeFor(status),
		Payload:        body,
		Status:         domain.WebhookEventStatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.webhooks.Create(r.Context(), event); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			log.Info("duplicate webhook received", "external_id", payload.ID, "status", payload.Status)
			RespondSuccess(w, http.StatusOK, map[string]string{"status": "already_received"})
			return
		}
		log.Error("failed to store webhook event", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	log.Info("webhook event stored",
		"webhook_event_id", event.ID,
		"external_id", payload.ID,
		"event_type", event.EventType,
	)

	RespondSuccess(w, http.StatusOK, map[string]string{"status": "received"})
}

// Sign returns the hex HMAC-SHA256 of body, as sent in X-Webhook-Signature.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}
