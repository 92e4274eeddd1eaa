package withdrawal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/gateway"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
	"github.com/josh-kwaku/pix-ledger/internal/money"
)

type ledgerStore interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	Reserve(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64, ref uuid.UUID) (*domain.Ledger, error)
	Finalize(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64, ref uuid.UUID) (*domain.Ledger, error)
	Release(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64, ref uuid.UUID) (*domain.Ledger, error)
}

type withdrawRepo interface {
	Create(ctx context.Context, tx *sql.Tx, w *domain.Withdraw) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Withdraw, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Withdraw, error)
	GetByExternalIDForUpdate(ctx context.Context, tx *sql.Tx, externalID string) (*domain.Withdraw, error)
	SetExternalID(ctx context.Context, id uuid.UUID, externalID string) error
	UpdateOutcome(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.Status, externalID, failureReason *string, completedAt *time.Time) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Withdraw, int, error)
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type payoutSender interface {
	PayoutPix(ctx context.Context, amount int64, receiver gateway.Receiver, pixKey string, pixType domain.PixType) (*gateway.Payout, error)
}

type outboxWriter interface {
	Create(ctx context.Context, tx *sql.Tx, m *domain.OutboxMessage) error
}

type recorder interface {
	Withdrawal(status string, amount int64)
	WithdrawalAmbiguous()
}

type Request struct {
	UserID  uuid.UUID
	Amount  int64
	PixKey  string
	PixType domain.PixType
}

// Processor moves funds out through PIX payouts. Funds are reserved before the
// gateway is called and only finalized or released once the outcome is known.
type Processor struct {
	ledger    ledgerStore
	withdraws withdrawRepo
	users     userRepo
	gateway   payoutSender
	outbox    outboxWriter
	metrics   recorder
	maxAmount int64
}

func NewProcessor(
	ledger ledgerStore,
	withdraws withdrawRepo,
	users userRepo,
	gw payoutSender,
	outbox outboxWriter,
	metrics recorder,
	maxAmount int64,
) *Processor {
	if maxAmount <= 0 {
		maxAmount = money.DefaultMaxCents
	}
	return &Processor{
		ledger:    ledger,
		withdraws: withdraws,
		users:     users,
		gateway:   gw,
		outbox:    outbox,
		metrics:   metrics,
		maxAmount: maxAmount,
	}
}

// Handle reserves the amount, records the withdrawal and asks the gateway to pay
// it out. When the gateway's answer is ambiguous the withdrawal is returned still
// Created with its funds blocked, to be resolved by a later gateway event or an operator.
func (p *Processor) Handle(ctx context.Context, req Request) (*domain.Withdraw, error) {
	log := logging.FromContext(ctx)

	pixKey, err := p.validate(req)
	if err != nil {
		return nil, fmt.Errorf("Handle: %w", err)
	}

	user, err := p.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("Handle: load user: %w", err)
	}

	w, err := p.reserve(ctx, req, pixKey)
	if err != nil {
		return nil, fmt.Errorf("Handle: %w", err)
	}
	log = log.With("withdraw_id", w.ID)
	log.Info("withdraw reserved", "user_id", w.UserID, "amount", w.Amount)

	// Funds are blocked from here on; a caller hanging up must not strand them.
	ctx = logging.WithLogger(context.WithoutCancel(ctx), log)

	payout, err := p.gateway.PayoutPix(ctx, w.Amount, gateway.Receiver{Name: user.Name, Document: user.Document}, w.PixKey, w.PixType)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayRejected) || errors.Is(err, domain.ErrGatewayNotSent) {
			log.Warn("payout not accepted by gateway", "error", err)
			return p.conclude(ctx, w, domain.StatusError, nil, err.Error())
		}
		p.ambiguous(ctx, w, err)
		return w, nil
	}

	log.Info("payout submitted", "external_id", payout.ExternalID, "gateway_status", payout.Status)

	switch gateway.ClassifyPayout(payout.Status) {
	case gateway.OutcomePaid:
		return p.conclude(ctx, w, domain.StatusPaid, &payout.ExternalID, "")
	case gateway.OutcomeReproved:
		return p.conclude(ctx, w, domain.StatusReproved, &payout.ExternalID, failureReason(payout))
	case gateway.OutcomeRejected:
		return p.conclude(ctx, w, domain.StatusError, &payout.ExternalID, failureReason(payout))
	default:
		if err := p.withdraws.SetExternalID(ctx, w.ID, payout.ExternalID); err != nil {
			log.Error("payout external id not recorded", "external_id", payout.ExternalID, "error", err)
		} else {
			w.ExternalID = &payout.ExternalID
		}
		return w, nil
	}
}

func (p *Processor) validate(req Request) (string, error) {
	if req.Amount <= 0 || req.Amount > p.maxAmount {
		return "", fmt.Errorf("validate: amount %d: %w", req.Amount, domain.ErrInvalidAmount)
	}
	return domain.ValidatePixKey(req.PixKey, req.PixType)
}

func (p *Processor) reserve(ctx context.Context, req Request, pixKey string) (*domain.Withdraw, error) {
	now := time.Now().UTC()
	w := &domain.Withdraw{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Amount:    req.Amount,
		PixKey:    pixKey,
		PixType:   req.PixType,
		Status:    domain.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := p.ledger.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := p.ledger.Reserve(ctx, tx, w.UserID, w.Amount, w.ID); err != nil {
			return err
		}
		return p.withdraws.Create(ctx, tx, w)
	})
	if err != nil {
		return nil, fmt.Errorf("reserve: %w", err)
	}
	if p.metrics != nil {
		p.metrics.Withdrawal(domain.StatusCreated.String(), w.Amount)
	}
	return w, nil
}

// conclude settles a withdrawal after the payout call returned. If a gateway
// event already resolved it in the meantime, the stored state wins.
func (p *Processor) conclude(ctx context.Context, w *domain.Withdraw, status domain.Status, externalID *string, reason string) (*domain.Withdraw, error) {
	var out *domain.Withdraw
	err := p.ledger.InTx(ctx, func(tx *sql.Tx) error {
		current, err := p.withdraws.GetForUpdate(ctx, tx, w.ID)
		if err != nil {
			return err
		}
		out, err = p.transition(ctx, tx, current, status, externalID, reason)
		return err
	})
	if err != nil {
		logging.FromContext(ctx).Error("withdraw outcome not recorded",
			"withdraw_id", w.ID,
			"status", status,
			"error", err,
		)
		p.ambiguous(ctx, w, err)
		return w, nil
	}
	return out, nil
}

func (p *Processor) ambiguous(ctx context.Context, w *domain.Withdraw, cause error) {
	logging.FromContext(ctx).Warn("payout outcome unknown, funds stay blocked",
		"withdraw_id", w.ID,
		"amount", w.Amount,
		"error", cause,
	)
	if p.metrics != nil {
		p.metrics.WithdrawalAmbiguous()
	}
}

// transition moves a Created withdrawal into a terminal status inside tx,
// finalizing or releasing its reserved funds. Withdrawals that are already
// terminal are returned unchanged.
func (p *Processor) transition(ctx context.Context, tx *sql.Tx, w *domain.Withdraw, status domain.Status, externalID *string, reason string) (*domain.Withdraw, error) {
	if !w.Status.CanTransitionTo(status) {
		logging.FromContext(ctx).Info("withdraw already resolved",
			"withdraw_id", w.ID,
			"status", w.Status,
			"requested", status,
		)
		return w, nil
	}

	var err error
	switch status {
	case domain.StatusPaid:
		_, err = p.ledger.Finalize(ctx, tx, w.UserID, w.Amount, w.ID)
	case domain.StatusReproved, domain.StatusError, domain.StatusCancelled:
		_, err = p.ledger.Release(ctx, tx, w.UserID, w.Amount, w.ID)
	default:
		return nil, fmt.Errorf("transition: %s: %w", status, domain.ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}

	now := time.Now().UTC()
	var failure *string
	if reason != "" {
		failure = &reason
	}
	if err := p.withdraws.UpdateOutcome(ctx, tx, w.ID, status, externalID, failure, &now); err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}

	next := *w
	next.Status = status
	next.UpdatedAt = now
	next.CompletedAt = &now
	if externalID != nil {
		next.ExternalID = externalID
	}
	if failure != nil {
		next.FailureReason = failure
	}

	topic := domain.TopicWithdrawFailed
	if status == domain.StatusPaid {
		topic = domain.TopicWithdrawPaid
	}
	msg, err := domain.NewOutboxMessage(topic, next.UserID.String(), withdrawEvent(&next))
	if err != nil {
		return nil, fmt.Errorf("transition: outbox payload: %w", err)
	}
	if err := p.outbox.Create(ctx, tx, msg); err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}

	if p.metrics != nil {
		p.metrics.Withdrawal(status.String(), next.Amount)
	}
	logging.FromContext(ctx).Info("withdraw concluded",
		"withdraw_id", next.ID,
		"status", status,
		"amount", next.Amount,
	)
	return &next, nil
}

// ApplyGatewayEvent resolves the withdrawal paid out under externalID. It
// reports whether a transition happened; withdrawals that are already terminal
// ignore further events. Unknown ids yield domain.ErrNotFound.
func (p *Processor) ApplyGatewayEvent(ctx context.Context, externalID string, status domain.Status) (bool, error) {
	applied := false
	err := p.ledger.InTx(ctx, func(tx *sql.Tx) error {
		applied = false
		w, err := p.withdraws.GetByExternalIDForUpdate(ctx, tx, externalID)
		if err != nil {
			return err
		}
		if !w.Status.CanTransitionTo(status) {
			return nil
		}
		if _, err := p.transition(ctx, tx, w, status, nil, gatewayReason(status)); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("ApplyGatewayEvent: %w", err)
	}
	return applied, nil
}

// Resolve lets an operator conclude a withdrawal whose payout outcome was never
// learned. Only Created withdrawals can be resolved.
func (p *Processor) Resolve(ctx context.Context, id uuid.UUID, status domain.Status, reason string) (*domain.Withdraw, error) {
	switch status {
	case domain.StatusPaid, domain.StatusReproved, domain.StatusError, domain.StatusCancelled:
	default:
		return nil, fmt.Errorf("Resolve: %s: %w", status, domain.ErrInvalidStatus)
	}

	var out *domain.Withdraw
	err := p.ledger.InTx(ctx, func(tx *sql.Tx) error {
		w, err := p.withdraws.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if !w.Status.CanTransitionTo(status) {
			return fmt.Errorf("withdraw is %s: %w", w.Status, domain.ErrInvalidTransition)
		}
		out, err = p.transition(ctx, tx, w, status, nil, reason)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("Resolve: %w", err)
	}

	logging.FromContext(ctx).Info("withdraw resolved by operator", "withdraw_id", id, "status", status)
	return out, nil
}

func (p *Processor) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Withdraw, error) {
	w, err := p.withdraws.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	if w.UserID != userID {
		return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
	}
	return w, nil
}

func (p *Processor) List(ctx context.Context, userID uuid.UUID, page domain.Page) ([]domain.Withdraw, int, error) {
	list, total, err := p.withdraws.ListByUser(ctx, userID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	return list, total, nil
}

func withdrawEvent(w *domain.Withdraw) domain.WithdrawEvent {
	ev := domain.WithdrawEvent{
		WithdrawID: w.ID,
		UserID:     w.UserID,
		Amount:     w.Amount,
		Status:     w.Status,
	}
	if w.ExternalID != nil {
		ev.ExternalID = *w.ExternalID
	}
	if w.FailureReason != nil {
		ev.FailureReason = *w.FailureReason
	}
	return ev
}

func failureReason(p *gateway.Payout) string {
	if p.Message != "" {
		return p.Message
	}
	return "gateway status " + p.Status
}

func gatewayReason(status domain.Status) string {
	if status == domain.StatusPaid {
		return ""
	}
	return "gateway reported " + status.String()
}
