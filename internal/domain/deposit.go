package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentMethod string

const PaymentMethodPix PaymentMethod = "pix"

type Deposit struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Amount        int64
	PaymentMethod PaymentMethod
	Status        Status
	ExternalID    *string
	PaymentCode   *string
	QRCodeBase64  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SettledAt     *time.Time
}
