package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
)

const outboxColumns = `id, topic, message_key, payload, status, attempts, last_error, created_at, sent_at`

type OutboxRepository struct {
	db    *sql.DB
	lease time.Duration
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db, lease: 30 * time.Second}
}

func (r *OutboxRepository) Create(ctx context.Context, tx *sql.Tx, m *domain.OutboxMessage) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_messages (
			id, topic, message_key, payload, status, attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.Topic, m.Key, []byte(m.Payload), m.Status, m.Attempts, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// Insert writes a message outside any business transaction.
func (r *OutboxRepository) Insert(ctx context.Context, m *domain.OutboxMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO outbox_messages (
			id, topic, message_key, payload, status, attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.Topic, m.Key, []byte(m.Payload), m.Status, m.Attempts, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// ClaimPending leases up to limit unsent messages, oldest first.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE outbox_messages SET attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM outbox_messages
			WHERE status = $1
				AND (attempts = 0 OR created_at + (attempts * $2::interval) < now())
			ORDER BY created_at LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+outboxColumns,
		domain.OutboxStatusPending, fmt.Sprintf("%d milliseconds", r.lease.Milliseconds()), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer rows.Close()

	var msgs []domain.OutboxMessage
	for rows.Next() {
		var m domain.OutboxMessage
		var payload []byte
		if err := rows.Scan(
			&m.ID, &m.Topic, &m.Key, &payload, &m.Status, &m.Attempts,
			&m.LastError, &m.CreatedAt, &m.SentAt,
		); err != nil {
			return nil, fmt.Errorf("ClaimPending: scan: %w", err)
		}
		m.Payload = payload
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimPending: rows: %w", err)
	}
	return msgs, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_messages SET status = $1, sent_at = now(), last_error = NULL WHERE id = $2`,
		domain.OutboxStatusSent, id,
	)
	if err != nil {
		return fmt.Errorf("MarkSent: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, cause string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_messages SET last_error = $1 WHERE id = $2`,
		cause, id,
	)
	if err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	return nil
}

func (r *OutboxRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox_messages WHERE status = $1`, domain.OutboxStatusPending,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountPending: %w", err)
	}
	return n, nil
}
