package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
)

const ledgerColumns = `user_id, total_amount, total_blocked, total_pending, version, updated_at`

const movementColumns = `id, user_id, kind, amount, reference_id,
	total_amount_after, total_blocked_after, created_at`

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Ledger, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledgers WHERE user_id = $1`, userID,
	)
	l, err := scanLedger(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByUserID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	return l, nil
}

// Ensure creates an empty ledger for userID if none exists.
func (r *LedgerRepository) Ensure(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledgers (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID,
	)
	if err != nil {
		return fmt.Errorf("Ensure: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.Ledger, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledgers WHERE user_id = $1 FOR UPDATE`, userID,
	)
	l, err := scanLedger(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return l, nil
}

// Update writes totals guarded by the previous version. l.Version must already be the new version.
func (r *LedgerRepository) Update(ctx context.Context, tx *sql.Tx, l *domain.Ledger) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE ledgers SET total_amount = $1, total_blocked = $2, total_pending = $3,
			version = $4, updated_at = $5
		WHERE user_id = $6 AND version = $7`,
		l.TotalAmount, l.TotalBlocked, l.TotalPending, l.Version, l.UpdatedAt,
		l.UserID, l.Version-1,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Update: %w", domain.ErrVersionConflict)
	}
	return nil
}

// CreateMovement journals an applied primitive. The same (reference, kind) twice yields domain.ErrDuplicateEvent.
func (r *LedgerRepository) CreateMovement(ctx context.Context, tx *sql.Tx, m *domain.Movement) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_movements (
			id, user_id, kind, amount, reference_id,
			total_amount_after, total_blocked_after, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.UserID, m.Kind, m.Amount, m.ReferenceID,
		m.TotalAmountAfter, m.TotalBlockedAfter, m.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("CreateMovement: %s %s: %w", m.Kind, m.ReferenceID, domain.ErrDuplicateEvent)
		}
		return fmt.Errorf("CreateMovement: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ListMovements(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Movement, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_movements WHERE user_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListMovements: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+movementColumns+` FROM ledger_movements
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListMovements: %w", err)
	}
	defer rows.Close()

	var movements []domain.Movement
	for rows.Next() {
		var m domain.Movement
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Kind, &m.Amount, &m.ReferenceID,
			&m.TotalAmountAfter, &m.TotalBlockedAfter, &m.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("ListMovements: scan: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListMovements: rows: %w", err)
	}
	return movements, total, nil
}

func scanLedger(s scanner) (*domain.Ledger, error) {
	var l domain.Ledger
	err := s.Scan(
		&l.UserID, &l.TotalAmount, &l.TotalBlocked, &l.TotalPending, &l.Version, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
