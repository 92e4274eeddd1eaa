package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Ledger is the custodial balance of one user. TotalAmount is spendable,
// TotalBlocked is reserved against pending withdrawals.
type Ledger struct {
	UserID       uuid.UUID
	TotalAmount  int64
	TotalBlocked int64
	TotalPending int64
	Version      int64
	UpdatedAt    time.Time
}

type MovementKind string

const (
	MovementCredit   MovementKind = "credit"
	MovementReserve  MovementKind = "reserve"
	MovementFinalize MovementKind = "finalize"
	MovementRelease  MovementKind = "release"
)

// Movement records one applied ledger primitive. (ReferenceID, Kind) is unique.
type Movement struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Kind              MovementKind
	Amount            int64
	ReferenceID       uuid.UUID
	TotalAmountAfter  int64
	TotalBlockedAfter int64
	CreatedAt         time.Time
}

// Apply returns the ledger after applying kind. The receiver is never modified.
func (l Ledger) Apply(kind MovementKind, amount int64) (Ledger, error) {
	switch kind {
	case MovementCredit:
		return l.Credit(amount)
	case MovementReserve:
		return l.Reserve(amount)
	case MovementFinalize:
		return l.Finalize(amount)
	case MovementRelease:
		return l.Release(amount)
	default:
		return l, fmt.Errorf("Apply: unknown movement %q", kind)
	}
}

func (l Ledger) Credit(amount int64) (Ledger, error) {
	if amount <= 0 {
		return l, fmt.Errorf("Credit: %w", ErrInvalidAmount)
	}
	if l.TotalAmount > math.MaxInt64-amount {
		return l, fmt.Errorf("Credit: overflow: %w", ErrInvalidAmount)
	}
	l.TotalAmount += amount
	return l, nil
}

func (l Ledger) Reserve(amount int64) (Ledger, error) {
	if amount <= 0 {
		return l, fmt.Errorf("Reserve: %w", ErrInvalidAmount)
	}
	if l.TotalAmount < amount {
		return l, fmt.Errorf("Reserve: %w", ErrInsufficientBalance)
	}
	if l.TotalBlocked > math.MaxInt64-amount {
		return l, fmt.Errorf("Reserve: overflow: %w", ErrInvalidAmount)
	}
	l.TotalAmount -= amount
	l.TotalBlocked += amount
	return l, nil
}

func (l Ledger) Finalize(amount int64) (Ledger, error) {
	if amount <= 0 {
		return l, fmt.Errorf("Finalize: %w", ErrInvalidAmount)
	}
	if l.TotalBlocked < amount {
		return l, fmt.Errorf("Finalize: %w", ErrInsufficientBlocked)
	}
	l.TotalBlocked -= amount
	return l, nil
}

func (l Ledger) Release(amount int64) (Ledger, error) {
	if amount <= 0 {
		return l, fmt.Errorf("Release: %w", ErrInvalidAmount)
	}
	if l.TotalBlocked < amount {
		return l, fmt.Errorf("Release: %w", ErrInsufficientBlocked)
	}
	if l.TotalAmount > math.MaxInt64-amount {
		return l, fmt.Errorf("Release: overflow: %w", ErrInvalidAmount)
	}
	l.TotalBlocked -= amount
	l.TotalAmount += amount
	return l, nil
}
