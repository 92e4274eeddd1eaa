package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
)

const affiliateColumns = `id, user_id, affiliate_code, commission_percent, commission_type,
	is_market_user, created_at`

type AffiliateRepository struct {
	db *sql.DB
}

func NewAffiliateRepository(db *sql.DB) *AffiliateRepository {
	return &AffiliateRepository{db: db}
}

func (r *AffiliateRepository) Create(ctx context.Context, a *domain.Affiliate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO affiliates (
			id, user_id, affiliate_code, commission_percent, commission_type, is_market_user, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.UserID, a.AffiliateCode, a.CommissionPercent, a.CommissionType,
		a.IsMarketUser, a.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			if ViolatedConstraint(err) == "affiliates_affiliate_code_key" {
				return fmt.Errorf("Create: %w", domain.ErrAffiliateCodeTaken)
			}
			return fmt.Errorf("Create: %w", domain.ErrAlreadyAffiliate)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *AffiliateRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Affiliate, error) {
	return r.getOne(ctx, "GetByUserID", `WHERE user_id = $1`, userID)
}

func (r *AffiliateRepository) GetByCode(ctx context.Context, code string) (*domain.Affiliate, error) {
	return r.getOne(ctx, "GetByCode", `WHERE affiliate_code = $1`, strings.ToUpper(code))
}

func (r *AffiliateRepository) CountReferred(ctx context.Context, affiliateID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE referred_by = $1`, affiliateID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountReferred: %w", err)
	}
	return n, nil
}

func (r *AffiliateRepository) getOne(ctx context.Context, op, where string, arg any) (*domain.Affiliate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+affiliateColumns+` FROM affiliates `+where, arg)
	a, err := scanAffiliate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

func scanAffiliate(s scanner) (*domain.Affiliate, error) {
	var a domain.Affiliate
	err := s.Scan(
		&a.ID, &a.UserID, &a.AffiliateCode, &a.CommissionPercent, &a.CommissionType,
		&a.IsMarketUser, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// prefixed qualifies a column list with a table alias for joins.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
