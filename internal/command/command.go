package command

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/money"
	"github.com/josh-kwaku/pix-ledger/internal/service/deposit"
	"github.com/josh-kwaku/pix-ledger/internal/service/withdrawal"
)

// Response is the outcome of a core command. On failure Data is the zero value
// and Err carries the cause for classification with errors.Is.
type Response[T any] struct {
	Success bool
	Data    T
	Message string
	Err     error
}

func Ok[T any](data T, message string) Response[T] {
	return Response[T]{Success: true, Data: data, Message: message}
}

func Fail[T any](err error) Response[T] {
	return Response[T]{Message: Message(err), Err: err}
}

// Message renders err for end users without leaking internals.
func Message(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return "Invalid amount."
	case errors.Is(err, domain.ErrInvalidDocument):
		return "Invalid CPF/CNPJ."
	case errors.Is(err, domain.ErrInvalidPixKey), errors.Is(err, domain.ErrInvalidPixType):
		return "Invalid PIX key."
	case errors.Is(err, domain.ErrValidation):
		return "Invalid request."
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "Insufficient balance."
	case errors.Is(err, domain.ErrGatewayRejected):
		return "The payment provider refused the operation."
	case errors.Is(err, domain.ErrGateway):
		return "The payment provider is unavailable, try again later."
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "Your balance is being updated, try again."
	case errors.Is(err, domain.ErrNotFound):
		return "Not found."
	default:
		return "Something went wrong."
	}
}

type depositCreator interface {
	Create(ctx context.Context, req deposit.CreateRequest) (*domain.Deposit, error)
}

type withdrawHandler interface {
	Handle(ctx context.Context, req withdrawal.Request) (*domain.Withdraw, error)
}

type DepositResult struct {
	DepositID    uuid.UUID
	ExternalID   string
	PaymentCode  string
	QRCodeBase64 string
	Amount       int64
	Status       domain.Status
}

type WithdrawResult struct {
	WithdrawID uuid.UUID
	Amount     int64
	Status     domain.Status
}

// Commands is the entry point used by the HTTP layer. Amounts arrive as decimal
// reais and are converted to cents here.
type Commands struct {
	deposits    depositCreator
	withdrawals withdrawHandler
	money       money.Converter
}

func New(deposits depositCreator, withdrawals withdrawHandler, converter money.Converter) *Commands {
	return &Commands{
		deposits:    deposits,
		withdrawals: withdrawals,
		money:       converter,
	}
}

func (c *Commands) CreateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, document string) Response[DepositResult] {
	cents, err := c.money.ToCentsPositive(amount)
	if err != nil {
		return Fail[DepositResult](err)
	}

	d, err := c.deposits.Create(ctx, deposit.CreateRequest{UserID: userID, Amount: cents, Document: document})
	if err != nil {
		return Fail[DepositResult](err)
	}

	return Ok(DepositResult{
		DepositID:    d.ID,
		ExternalID:   deref(d.ExternalID),
		PaymentCode:  deref(d.PaymentCode),
		QRCodeBase64: deref(d.QRCodeBase64),
		Amount:       d.Amount,
		Status:       d.Status,
	}, "Deposit created, pay the PIX charge to complete it.")
}

func (c *Commands) CreateWithdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, pixKey string, pixType domain.PixType) Response[WithdrawResult] {
	cents, err := c.money.ToCentsPositive(amount)
	if err != nil {
		return Fail[WithdrawResult](err)
	}

	w, err := c.withdrawals.Handle(ctx, withdrawal.Request{UserID: userID, Amount: cents, PixKey: pixKey, PixType: pixType})
	if err != nil {
		return Fail[WithdrawResult](err)
	}

	return Ok(WithdrawResult{
		WithdrawID: w.ID,
		Amount:     w.Amount,
		Status:     w.Status,
	}, withdrawMessage(w.Status))
}

func withdrawMessage(s domain.Status) string {
	switch s {
	case domain.StatusPaid:
		return "Withdrawal paid."
	case domain.StatusCreated:
		return "Withdrawal is being processed."
	default:
		return "Withdrawal was not completed, the amount is back in your balance."
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
