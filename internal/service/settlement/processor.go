package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
)

type ledgerStore interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	Credit(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64, ref uuid.UUID) (*domain.Ledger, error)
}

type depositRepo interface {
	GetByExternalIDForUpdate(ctx context.Context, tx *sql.Tx, externalID string) (*domain.Deposit, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.Status, settledAt *time.Time) error
}

type commissionAccruer interface {
	Accrue(ctx context.Context, tx *sql.Tx, d *domain.Deposit) (*domain.AffiliateCommission, error)
}

type withdrawalApplier interface {
	ApplyGatewayEvent(ctx context.Context, externalID string, status domain.Status) (bool, error)
}

type outboxWriter interface {
	Create(ctx context.Context, tx *sql.Tx, m *domain.OutboxMessage) error
}

type recorder interface {
	Settlement(result string, paidAmount int64)
}

type Result string

const (
	ResultCredited  Result = "credited"
	ResultFailed    Result = "failed"
	ResultDuplicate Result = "duplicate"
	ResultWithdraw  Result = "withdraw"
	ResultUnknown   Result = "unknown"
)

// Processor applies gateway payment events to deposits. Events may arrive
// duplicated or out of order; only the first transition of a deposit into Paid
// credits the ledger and accrues commission.
type Processor struct {
	ledger      ledgerStore
	deposits    depositRepo
	commissions commissionAccruer
	withdrawals withdrawalApplier
	outbox      outboxWriter
	metrics     recorder
}

func NewProcessor(
	ledger ledgerStore,
	deposits depositRepo,
	commissions commissionAccruer,
	withdrawals withdrawalApplier,
	outbox outboxWriter,
	metrics recorder,
) *Processor {
	return &Processor{
		ledger:      ledger,
		deposits:    deposits,
		commissions: commissions,
		withdrawals: withdrawals,
		outbox:      outbox,
		metrics:     metrics,
	}
}

var errNoDeposit = errors.New("no deposit for external id")

// ApplyGatewayEvent maps a gateway status onto the deposit with externalID.
// Events for ids that match no deposit are offered to the withdrawal processor;
// ids that match neither yield domain.ErrUnknownDeposit.
func (p *Processor) ApplyGatewayEvent(ctx context.Context, externalID, gatewayStatus string) (Result, error) {
	ctx = logging.With(ctx, "external_id", externalID, "gateway_status", gatewayStatus)
	log := logging.FromContext(ctx)

	status, err := domain.ParseGatewayStatus(gatewayStatus)
	if err != nil {
		return "", fmt.Errorf("ApplyGatewayEvent: %w", err)
	}

	var (
		result Result
		credit int64
	)
	err = p.ledger.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, credit, err = p.applyToDeposit(ctx, tx, externalID, status)
		return err
	})

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDuplicateEvent):
		// A credit or commission for this deposit is already on record.
		log.Info("gateway event already applied")
		result, credit = ResultDuplicate, 0
	case errors.Is(err, errNoDeposit):
		result, err = p.applyToWithdrawal(ctx, externalID, status)
		if err != nil {
			p.record(ResultUnknown, 0)
			return ResultUnknown, err
		}
	default:
		return "", fmt.Errorf("ApplyGatewayEvent: %w", err)
	}

	p.record(result, credit)
	return result, nil
}

func (p *Processor) applyToDeposit(ctx context.Context, tx *sql.Tx, externalID string, status domain.Status) (Result, int64, error) {
	log := logging.FromContext(ctx)

	d, err := p.deposits.GetByExternalIDForUpdate(ctx, tx, externalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", 0, errNoDeposit
		}
		return "", 0, err
	}

	if !d.Status.CanTransitionTo(status) {
		log.Info("deposit already settled, event ignored",
			"deposit_id", d.ID,
			"status", d.Status,
		)
		return ResultDuplicate, 0, nil
	}

	now := time.Now().UTC()
	var settledAt *time.Time
	if status == domain.StatusPaid {
		settledAt = &now
	}
	if err := p.deposits.UpdateStatus(ctx, tx, d.ID, status, settledAt); err != nil {
		return "", 0, err
	}
	d.Status = status
	d.SettledAt = settledAt

	if status != domain.StatusPaid {
		if err := p.enqueue(ctx, tx, domain.TopicDepositFailed, d.UserID, depositEvent(d)); err != nil {
			return "", 0, err
		}
		log.Info("deposit failed", "deposit_id", d.ID, "status", status)
		return ResultFailed, 0, nil
	}

	if _, err := p.ledger.Credit(ctx, tx, d.UserID, d.Amount, d.ID); err != nil {
		return "", 0, err
	}

	commission, err := p.commissions.Accrue(ctx, tx, d)
	if err != nil {
		return "", 0, err
	}

	if err := p.enqueue(ctx, tx, domain.TopicDepositPaid, d.UserID, depositEvent(d)); err != nil {
		return "", 0, err
	}
	if commission != nil {
		ev := domain.CommissionEvent{
			CommissionID: commission.ID,
			AffiliateID:  commission.AffiliateID,
			DepositID:    commission.DepositID,
			SourceUserID: commission.SourceUserID,
			Amount:       commission.Amount,
		}
		if err := p.enqueue(ctx, tx, domain.TopicCommissionAccrued, commission.AffiliateID, ev); err != nil {
			return "", 0, err
		}
	}

	log.Info("deposit credited",
		"deposit_id", d.ID,
		"user_id", d.UserID,
		"amount", d.Amount,
	)
	return ResultCredited, d.Amount, nil
}

func (p *Processor) applyToWithdrawal(ctx context.Context, externalID string, status domain.Status) (Result, error) {
	log := logging.FromContext(ctx)

	applied, err := p.withdrawals.ApplyGatewayEvent(ctx, externalID, status)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("gateway event for unknown external id")
			return ResultUnknown, fmt.Errorf("ApplyGatewayEvent: %s: %w", externalID, domain.ErrUnknownDeposit)
		}
		return ResultUnknown, fmt.Errorf("ApplyGatewayEvent: %w", err)
	}
	if !applied {
		return ResultDuplicate, nil
	}
	return ResultWithdraw, nil
}

func (p *Processor) enqueue(ctx context.Context, tx *sql.Tx, topic string, key uuid.UUID, payload any) error {
	msg, err := domain.NewOutboxMessage(topic, key.String(), payload)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", topic, err)
	}
	return p.outbox.Create(ctx, tx, msg)
}

func (p *Processor) record(result Result, credit int64) {
	if p.metrics != nil {
		p.metrics.Settlement(string(result), credit)
	}
}

func depositEvent(d *domain.Deposit) domain.DepositEvent {
	ev := domain.DepositEvent{
		DepositID: d.ID,
		UserID:    d.UserID,
		Amount:    d.Amount,
		Status:    d.Status,
	}
	if d.ExternalID != nil {
		ev.ExternalID = *d.ExternalID
	}
	return ev
}
