package commission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
	"github.com/josh-kwaku/pix-ledger/internal/money"
)

type referrerRepo interface {
	GetReferrer(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.Affiliate, error)
}

type commissionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, c *domain.AffiliateCommission) error
}

type recorder interface {
	Commission(amount int64)
}

type Accruer struct {
	users       referrerRepo
	commissions commissionRepo
	metrics     recorder
}

func NewAccruer(users referrerRepo, commissions commissionRepo, metrics recorder) *Accruer {
	return &Accruer{
		users:       users,
		commissions: commissions,
		metrics:     metrics,
	}
}

// Accrue records the referring affiliate's share of a settled deposit inside tx.
// It returns nil without writing when the depositor has no referrer, refers
// themselves, or the share rounds to zero. A second accrual for the same
// deposit fails with domain.ErrDuplicateEvent.
func (a *Accruer) Accrue(ctx context.Context, tx *sql.Tx, d *domain.Deposit) (*domain.AffiliateCommission, error) {
	log := logging.FromContext(ctx)

	affiliate, err := a.users.GetReferrer(ctx, tx, d.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("Accrue: %w", err)
	}

	if affiliate.UserID == d.UserID {
		log.Warn("self referral ignored", "deposit_id", d.ID, "affiliate_id", affiliate.ID)
		return nil, nil
	}

	amount := money.Percent(d.Amount, affiliate.CommissionPercent)
	if amount <= 0 {
		return nil, nil
	}

	c := &domain.AffiliateCommission{
		ID:           uuid.New(),
		AffiliateID:  affiliate.ID,
		SourceUserID: d.UserID,
		DepositID:    d.ID,
		Amount:       amount,
		Type:         domain.CommissionTypeDeposit,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.commissions.Create(ctx, tx, c); err != nil {
		return nil, fmt.Errorf("Accrue: %w", err)
	}

	if a.metrics != nil {
		a.metrics.Commission(amount)
	}
	log.Info("commission accrued",
		"deposit_id", d.ID,
		"affiliate_id", affiliate.ID,
		"amount", amount,
	)
	return c, nil
}
