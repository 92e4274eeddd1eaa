package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
)

const staleSweepLockKey = "stale-withdraw-sweep"

type staleWithdrawRepo interface {
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]domain.Withdraw, error)
}

type locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}

type staleRecorder interface {
	StaleWithdrawals(n int)
}

type outboxCreator interface {
	Insert(ctx context.Context, m *domain.OutboxMessage) error
}

// StaleSweeper reports withdrawals whose payout outcome is still unknown after
// a threshold. It never moves funds; resolution is left to a webhook or an operator.
// Only one replica sweeps per run.
type StaleSweeper struct {
	withdraws staleWithdrawRepo
	lock      locker
	outbox    outboxCreator
	metrics   staleRecorder
	logger    *slog.Logger
	after     time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

func NewStaleSweeper(
	withdraws staleWithdrawRepo,
	lock locker,
	outbox outboxCreator,
	metrics staleRecorder,
	logger *slog.Logger,
	after time.Duration,
) *StaleSweeper {
	return &StaleSweeper{
		withdraws: withdraws,
		lock:      lock,
		outbox:    outbox,
		metrics:   metrics,
		logger:    logger,
		after:     after,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Start schedules the sweep and blocks until ctx is done.
func (s *StaleSweeper) Start(ctx context.Context, schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("stale withdrawal sweeper started", "schedule", schedule, "after", s.after)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("stale withdrawal sweeper stopped")
	return nil
}

// Sweep runs one pass and returns the number of stale withdrawals found, or -1
// when another instance holds the lock.
func (s *StaleSweeper) Sweep(ctx context.Context) int {
	if s.lock != nil {
		token, err := s.lock.Acquire(ctx, staleSweepLockKey, time.Minute)
		if err != nil {
			s.logger.Error("failed to acquire sweep lock", "error", err)
			return -1
		}
		if token == "" {
			s.logger.Debug("sweep lock held elsewhere, skipping")
			return -1
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), staleSweepLockKey, token); err != nil {
				s.logger.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	stale, err := s.withdraws.ListStale(ctx, s.now().Add(-s.after), 500)
	if err != nil {
		s.logger.Error("failed to list stale withdrawals", "error", err)
		return 0
	}
	if s.metrics != nil {
		s.metrics.StaleWithdrawals(len(stale))
	}

	for i := range stale {
		w := &stale[i]
		s.logger.Warn("withdrawal awaiting gateway outcome",
			"withdraw_id", w.ID,
			"user_id", w.UserID,
			"amount", w.Amount,
			"age", s.now().Sub(w.CreatedAt).Round(time.Second).String(),
		)

		msg, err := domain.NewOutboxMessage(domain.TopicWithdrawStale, w.UserID.String(), domain.WithdrawEvent{
			WithdrawID: w.ID,
			UserID:     w.UserID,
			Amount:     w.Amount,
			Status:     w.Status,
			ExternalID: derefString(w.ExternalID),
		})
		if err != nil {
			s.logger.Error("failed to build stale event", "withdraw_id", w.ID, "error", err)
			continue
		}
		if err := s.outbox.Insert(ctx, msg); err != nil {
			s.logger.Error("failed to enqueue stale event", "withdraw_id", w.ID, "error", err)
		}
	}
	return len(stale)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
