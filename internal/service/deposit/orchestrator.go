package deposit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/gateway"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
	"github.com/josh-kwaku/pix-ledger/internal/money"
)

type depositRepo interface {
	Create(ctx context.Context, d *domain.Deposit) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Deposit, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Deposit, int, error)
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type chargeOpener interface {
	OpenPixCharge(ctx context.Context, amount int64, payer gateway.Payer) (*gateway.Charge, error)
}

type recorder interface {
	DepositCreated(amount int64)
	DepositOrphaned()
}

type CreateRequest struct {
	UserID   uuid.UUID
	Amount   int64
	Document string
}

// Orchestrator opens PIX charges and records the resulting deposits. Balances are
// only touched later, when the gateway reports the charge as paid.
type Orchestrator struct {
	deposits  depositRepo
	users     userRepo
	gateway   chargeOpener
	metrics   recorder
	maxAmount int64
}

func NewOrchestrator(deposits depositRepo, users userRepo, gw chargeOpener, metrics recorder, maxAmount int64) *Orchestrator {
	if maxAmount <= 0 {
		maxAmount = money.DefaultMaxCents
	}
	return &Orchestrator{
		deposits:  deposits,
		users:     users,
		gateway:   gw,
		metrics:   metrics,
		maxAmount: maxAmount,
	}
}

func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (*domain.Deposit, error) {
	log := logging.FromContext(ctx)

	document, err := o.validate(req)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	user, err := o.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("Create: load user: %w", err)
	}

	charge, err := o.gateway.OpenPixCharge(ctx, req.Amount, gateway.Payer{Name: user.Name, Document: document})
	if err != nil {
		log.Warn("pix charge not opened", "user_id", req.UserID, "amount", req.Amount, "error", err)
		return nil, fmt.Errorf("Create: %w", err)
	}

	now := time.Now().UTC()
	d := &domain.Deposit{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Amount:        req.Amount,
		PaymentMethod: domain.PaymentMethodPix,
		Status:        domain.StatusCreated,
		ExternalID:    &charge.ExternalID,
		PaymentCode:   optional(charge.PaymentCode),
		QRCodeBase64:  optional(charge.QRCodeBase64),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := o.deposits.Create(ctx, d); err != nil {
		log.Error("deposit charge orphaned",
			"user_id", req.UserID,
			"external_id", charge.ExternalID,
			"amount", req.Amount,
			"error", err,
		)
		if o.metrics != nil {
			o.metrics.DepositOrphaned()
		}
		return nil, fmt.Errorf("Create: persist deposit: %w", err)
	}

	if o.metrics != nil {
		o.metrics.DepositCreated(req.Amount)
	}
	log.Info("deposit created",
		"deposit_id", d.ID,
		"user_id", d.UserID,
		"external_id", charge.ExternalID,
		"amount", d.Amount,
	)
	return d, nil
}

func (o *Orchestrator) validate(req CreateRequest) (string, error) {
	if req.Amount <= 0 || req.Amount > o.maxAmount {
		return "", fmt.Errorf("validate: amount %d: %w", req.Amount, domain.ErrInvalidAmount)
	}
	return domain.NormalizeDocument(req.Document)
}

// Get returns the deposit if it belongs to userID. Other users' deposits are reported as not found.
func (o *Orchestrator) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Deposit, error) {
	d, err := o.deposits.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	if d.UserID != userID {
		return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
	}
	return d, nil
}

func (o *Orchestrator) List(ctx context.Context, userID uuid.UUID, page domain.Page) ([]domain.Deposit, int, error) {
	deposits, total, err := o.deposits.ListByUser(ctx, userID, page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	return deposits, total, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
