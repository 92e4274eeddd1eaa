package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TopicDepositPaid       = "deposit.paid"
	TopicDepositFailed     = "deposit.failed"
	TopicWithdrawPaid      = "withdraw.paid"
	TopicWithdrawFailed    = "withdraw.failed"
	TopicCommissionAccrued = "commission.accrued"
	TopicWithdrawStale     = "withdraw.stale"
)

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
)

// OutboxMessage is written in the same transaction as the state change it announces.
type OutboxMessage struct {
	ID        uuid.UUID
	Topic     string
	Key       string
	Payload   json.RawMessage
	Status    OutboxStatus
	Attempts  int
	LastError *string
	CreatedAt time.Time
	SentAt    *time.Time
}

func NewOutboxMessage(topic, key string, payload any) (*OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxMessage{
		ID:        uuid.New(),
		Topic:     topic,
		Key:       key,
		Payload:   body,
		Status:    OutboxStatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type DepositEvent struct {
	DepositID  uuid.UUID `json:"deposit_id"`
	UserID     uuid.UUID `json:"user_id"`
	Amount     int64     `json:"amount"`
	Status     Status    `json:"status"`
	ExternalID string    `json:"external_id"`
}

type WithdrawEvent struct {
	WithdrawID    uuid.UUID `json:"withdraw_id"`
	UserID        uuid.UUID `json:"user_id"`
	Amount        int64     `json:"amount"`
	Status        Status    `json:"status"`
	ExternalID    string    `json:"external_id,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

type CommissionEvent struct {
	CommissionID uuid.UUID `json:"commission_id"`
	AffiliateID  uuid.UUID `json:"affiliate_id"`
	DepositID    uuid.UUID `json:"deposit_id"`
	SourceUserID uuid.UUID `json:"source_user_id"`
	Amount       int64     `json:"amount"`
}
