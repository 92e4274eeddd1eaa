package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
)

const depositColumns = `id, user_id, amount, payment_method, status, external_id,
	payment_code, qr_code_base64, created_at, updated_at, settled_at`

type DepositRepository struct {
	db *sql.DB
}

func NewDepositRepository(db *sql.DB) *DepositRepository {
	return &DepositRepository{db: db}
}

func (r *DepositRepository) Create(ctx context.Context, d *domain.Deposit) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO deposits (
			id, user_id, amount, payment_method, status, external_id,
			payment_code, qr_code_base64, created_at, updated_at, settled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.UserID, d.Amount, d.PaymentMethod, d.Status, d.ExternalID,
		d.PaymentCode, d.QRCodeBase64, d.CreatedAt, d.UpdatedAt, d.SettledAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("Create: external id already recorded: %w", domain.ErrDuplicateEvent)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *DepositRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deposit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+depositColumns+` FROM deposits WHERE id = $1`, id,
	)
	d, err := scanDeposit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return d, nil
}

// GetByExternalIDForUpdate locks the deposit row for the settlement transaction.
func (r *DepositRepository) GetByExternalIDForUpdate(ctx context.Context, tx *sql.Tx, externalID string) (*domain.Deposit, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+depositColumns+` FROM deposits WHERE external_id = $1 FOR UPDATE`, externalID,
	)
	d, err := scanDeposit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByExternalIDForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByExternalIDForUpdate: %w", err)
	}
	return d, nil
}

func (r *DepositRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.Status, settledAt *time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE deposits SET status = $1, settled_at = COALESCE($2, settled_at), updated_at = now()
		WHERE id = $3`,
		status, settledAt, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *DepositRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Deposit, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deposits WHERE user_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+depositColumns+` FROM deposits
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: %w", err)
	}
	defer rows.Close()

	var deposits []domain.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListByUser: scan: %w", err)
		}
		deposits = append(deposits, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListByUser: rows: %w", err)
	}
	return deposits, total, nil
}

func scanDeposit(s scanner) (*domain.Deposit, error) {
	var d domain.Deposit
	err := s.Scan(
		&d.ID, &d.UserID, &d.Amount, &d.PaymentMethod, &d.Status, &d.ExternalID,
		&d.PaymentCode, &d.QRCodeBase64, &d.CreatedAt, &d.UpdatedAt, &d.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
