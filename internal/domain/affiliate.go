package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CommissionType string

const (
	CommissionTypeDeposit CommissionType = "deposit"
	CommissionTypeTrade   CommissionType = "trade"
)

type Affiliate struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	AffiliateCode     string
	CommissionPercent decimal.Decimal
	CommissionType    CommissionType
	IsMarketUser      bool
	CreatedAt         time.Time
}

// AffiliateCommission is append-only; at most one row exists per deposit.
type AffiliateCommission struct {
	ID           uuid.UUID
	AffiliateID  uuid.UUID
	SourceUserID uuid.UUID
	DepositID    uuid.UUID
	Amount       int64
	Type         CommissionType
	CreatedAt    time.Time
}
