package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
	"github.com/josh-kwaku/pix-ledger/internal/repository"
)

const defaultMaxRetries = 3

type ledgerRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Ledger, error)
	Ensure(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*domain.Ledger, error)
	Update(ctx context.Context, tx *sql.Tx, l *domain.Ledger) error
	CreateMovement(ctx context.Context, tx *sql.Tx, m *domain.Movement) error
	ListMovements(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Movement, int, error)
}

type conflictRecorder interface {
	LedgerConflict()
}

// Store serializes balance mutations per user. Each primitive locks the ledger row,
// applies the transition, writes it back under a version check and journals the
// movement, all inside the caller's transaction.
type Store struct {
	ledgers    ledgerRepo
	db         *sql.DB
	maxRetries int
	metrics    conflictRecorder
	after      func(time.Duration) <-chan time.Time
}

func NewStore(ledgers ledgerRepo, db *sql.DB, maxRetries int, metrics conflictRecorder) *Store {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Store{
		ledgers:    ledgers,
		db:         db,
		maxRetries: maxRetries,
		metrics:    metrics,
		after:      time.After,
	}
}

func (s *Store) Credit(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64, ref uuid.UUID) (*domain.Ledger, error) {
	return s.apply(ctx, tx, userID, domain.MovementCredit, amount, ref)
}

func (s *Store) Reserve(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64, ref uuid.UUID) (*domain.Ledger, error) {
	return s.apply(ctx, tx, userID, domain.MovementReserve, amount, ref)
}

func (s *Store) Finalize(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64, ref uuid.UUID) (*domain.Ledger, error) {
	return s.apply(ctx, tx, userID, domain.MovementFinalize, amount, ref)
}

func (s *Store) Release(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64, ref uuid.UUID) (*domain.Ledger, error) {
	return s.apply(ctx, tx, userID, domain.MovementRelease, amount, ref)
}

// Get returns the user's ledger, or an empty one if nothing was ever credited.
func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*domain.Ledger, error) {
	l, err := s.ledgers.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.Ledger{UserID: userID}, nil
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return l, nil
}

// Movements returns the user's journal, newest first.
func (s *Store) Movements(ctx context.Context, userID uuid.UUID, page domain.Page) ([]domain.Movement, int, error) {
	movements, total, err := s.ledgers.ListMovements(ctx, userID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("Movements: %w", err)
	}
	return movements, total, nil
}

// InTx runs fn in a transaction, retrying the whole unit when it fails with a
// version conflict or a serialization failure. Once the retry budget is spent
// the caller gets domain.ErrConcurrencyConflict.
func (s *Store) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	log := logging.FromContext(ctx)

	var lastErr error
	for attempt := range s.maxRetries {
		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}

		lastErr = err
		if s.metrics != nil {
			s.metrics.LedgerConflict()
		}
		if attempt == s.maxRetries-1 {
			break
		}
		log.Warn("ledger conflict, retrying", "attempt", attempt+1, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("InTx: %w", ctx.Err())
		case <-s.after(backoff(attempt)):
		}
	}

	return fmt.Errorf("InTx: %d attempts: %w: %w", s.maxRetries, domain.ErrConcurrencyConflict, lastErr)
}

func (s *Store) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("runTx: begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("runTx: commit: %w", err)
	}
	return nil
}

func (s *Store) apply(ctx context.Context, tx *sql.Tx, userID uuid.UUID, kind domain.MovementKind, amount int64, ref uuid.UUID) (*domain.Ledger, error) {
	if err := s.ledgers.Ensure(ctx, tx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	current, err := s.ledgers.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	next, err := current.Apply(kind, amount)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	next.Version = current.Version + 1
	next.UpdatedAt = now

	if err := s.ledgers.Update(ctx, tx, &next); err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	movement := &domain.Movement{
		ID:                uuid.New(),
		UserID:            userID,
		Kind:              kind,
		Amount:            amount,
		ReferenceID:       ref,
		TotalAmountAfter:  next.TotalAmount,
		TotalBlockedAfter: next.TotalBlocked,
		CreatedAt:         now,
	}
	if err := s.ledgers.CreateMovement(ctx, tx, movement); err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	logging.FromContext(ctx).Debug("ledger movement applied",
		"user_id", userID,
		"kind", kind,
		"amount", amount,
		"reference_id", ref,
		"total_amount", next.TotalAmount,
		"total_blocked", next.TotalBlocked,
	)
	return &next, nil
}

func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrVersionConflict) || repository.IsSerializationFailure(err)
}

func backoff(attempt int) time.Duration {
	base := time.Duration(10*(attempt+1)) * time.Millisecond
	return base + time.Duration(rand.Int64N(int64(base)))
}
