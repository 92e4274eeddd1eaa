package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type WebhookEventStatus string

const (
	WebhookEventStatusPending   WebhookEventStatus = "pending"
	WebhookEventStatusProcessed WebhookEventStatus = "processed"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
)

type WebhookEventType string

const (
	WebhookEventTypePaid     WebhookEventType = "payment.paid"
	WebhookEventTypeReproved WebhookEventType = "payment.reproved"
	WebhookEventTypeRejected WebhookEventType = "payment.rejected"
)

type WebhookEvent struct {
	ID             uuid.UUID
	IdempotencyKey string
	EventType      WebhookEventType
	Payload        json.RawMessage
	Status         WebhookEventStatus
	Attempts       int
	LastAttempt    *time.Time
	CreatedAt      time.Time
}

// WebhookPayload is the body Flowpag posts for deposit and payout updates.
type WebhookPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// WebhookEventTypeFor names the stored event after the gateway status.
func WebhookEventTypeFor(s GatewayStatus) WebhookEventType {
	return WebhookEventType("payment." + string(s))
}
