package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
)

const commissionColumns = `id, affiliate_id, source_user_id, deposit_id, amount, type, created_at`

type CommissionRepository struct {
	db *sql.DB
}

func NewCommissionRepository(db *sql.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

// Create appends a commission row. A second row for the same deposit yields domain.ErrDuplicateEvent.
func (r *CommissionRepository) Create(ctx context.Context, tx *sql.Tx, c *domain.AffiliateCommission) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO affiliate_commissions (
			id, affiliate_id, source_user_id, deposit_id, amount, type, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.AffiliateID, c.SourceUserID, c.DepositID, c.Amount, c.Type, c.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("Create: deposit %s: %w", c.DepositID, domain.ErrDuplicateEvent)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

type CommissionTotals struct {
	Total        int64
	DepositTotal int64
	Count        int
}

func (r *CommissionRepository) TotalsByAffiliate(ctx context.Context, affiliateID uuid.UUID) (*CommissionTotals, error) {
	var t CommissionTotals
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = $2), 0),
			COUNT(*)
		FROM affiliate_commissions WHERE affiliate_id = $1`,
		affiliateID, domain.CommissionTypeDeposit,
	).Scan(&t.Total, &t.DepositTotal, &t.Count)
	if err != nil {
		return nil, fmt.Errorf("TotalsByAffiliate: %w", err)
	}
	return &t, nil
}

func (r *CommissionRepository) GetByDepositID(ctx context.Context, depositID uuid.UUID) ([]domain.AffiliateCommission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+commissionColumns+` FROM affiliate_commissions WHERE deposit_id = $1`, depositID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByDepositID: %w", err)
	}
	defer rows.Close()

	var out []domain.AffiliateCommission
	for rows.Next() {
		var c domain.AffiliateCommission
		if err := rows.Scan(
			&c.ID, &c.AffiliateID, &c.SourceUserID, &c.DepositID, &c.Amount, &c.Type, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("GetByDepositID: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByDepositID: rows: %w", err)
	}
	return out, nil
}
