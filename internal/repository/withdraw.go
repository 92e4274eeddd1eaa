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

const withdrawColumns = `id, user_id, amount, pix_key, pix_type, status, external_id,
	failure_reason, created_at, updated_at, completed_at`

type WithdrawRepository struct {
	db *sql.DB
}

func NewWithdrawRepository(db *sql.DB) *WithdrawRepository {
	return &WithdrawRepository{db: db}
}

func (r *WithdrawRepository) Create(ctx context.Context, tx *sql.Tx, w *domain.Withdraw) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO withdraws (
			id, user_id, amount, pix_key, pix_type, status, external_id,
			failure_reason, created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		w.ID, w.UserID, w.Amount, w.PixKey, w.PixType, w.Status, w.ExternalID,
		w.FailureReason, w.CreatedAt, w.UpdatedAt, w.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *WithdrawRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdraw, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+withdrawColumns+` FROM withdraws WHERE id = $1`, id,
	)
	return wrapWithdrawErr("GetByID", row)
}

func (r *WithdrawRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Withdraw, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+withdrawColumns+` FROM withdraws WHERE id = $1 FOR UPDATE`, id,
	)
	return wrapWithdrawErr("GetForUpdate", row)
}

func (r *WithdrawRepository) GetByExternalIDForUpdate(ctx context.Context, tx *sql.Tx, externalID string) (*domain.Withdraw, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+withdrawColumns+` FROM withdraws WHERE external_id = $1 FOR UPDATE`, externalID,
	)
	return wrapWithdrawErr("GetByExternalIDForUpdate", row)
}

// SetExternalID records the gateway id of a payout that is still in flight.
func (r *WithdrawRepository) SetExternalID(ctx context.Context, id uuid.UUID, externalID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE withdraws SET external_id = $1, updated_at = now()
		WHERE id = $2 AND external_id IS NULL`,
		externalID, id,
	)
	if err != nil {
		return fmt.Errorf("SetExternalID: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetExternalID: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("SetExternalID: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *WithdrawRepository) UpdateOutcome(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.Status, externalID, failureReason *string, completedAt *time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE withdraws SET status = $1,
			external_id = COALESCE($2, external_id),
			failure_reason = COALESCE($3, failure_reason),
			completed_at = COALESCE($4, completed_at),
			updated_at = now()
		WHERE id = $5`,
		status, externalID, failureReason, completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateOutcome: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateOutcome: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateOutcome: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *WithdrawRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Withdraw, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM withdraws WHERE user_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+withdrawColumns+` FROM withdraws
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: %w", err)
	}
	defer rows.Close()

	withdraws, err := collectWithdraws(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: %w", err)
	}
	return withdraws, total, nil
}

// ListStale returns withdrawals still Created after olderThan, oldest first.
func (r *WithdrawRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]domain.Withdraw, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+withdrawColumns+` FROM withdraws
		WHERE status = $1 AND created_at < $2 ORDER BY created_at LIMIT $3`,
		domain.StatusCreated, olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListStale: %w", err)
	}
	defer rows.Close()

	withdraws, err := collectWithdraws(rows)
	if err != nil {
		return nil, fmt.Errorf("ListStale: %w", err)
	}
	return withdraws, nil
}

func (r *WithdrawRepository) SumPaidByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM withdraws WHERE user_id = $1 AND status = $2`,
		userID, domain.StatusPaid,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("SumPaidByUser: %w", err)
	}
	return sum, nil
}

func collectWithdraws(rows *sql.Rows) ([]domain.Withdraw, error) {
	var withdraws []domain.Withdraw
	for rows.Next() {
		w, err := scanWithdraw(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		withdraws = append(withdraws, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return withdraws, nil
}

func wrapWithdrawErr(op string, row *sql.Row) (*domain.Withdraw, error) {
	w, err := scanWithdraw(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}

func scanWithdraw(s scanner) (*domain.Withdraw, error) {
	var w domain.Withdraw
	err := s.Scan(
		&w.ID, &w.UserID, &w.Amount, &w.PixKey, &w.PixType, &w.Status, &w.ExternalID,
		&w.FailureReason, &w.CreatedAt, &w.UpdatedAt, &w.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
