package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/pix-ledger/internal/command"
	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
	"github.com/josh-kwaku/pix-ledger/internal/money"
)

type withdrawCommands interface {
	CreateWithdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, pixKey string, pixType domain.PixType) command.Response[command.WithdrawResult]
}

type withdrawReader interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.Withdraw, error)
	List(ctx context.Context, userID uuid.UUID, page domain.Page) ([]domain.Withdraw, int, error)
}

type WithdrawalHandler struct {
	commands  withdrawCommands
	withdraws withdrawReader
}

func NewWithdrawalHandler(commands withdrawCommands, withdraws withdrawReader) *WithdrawalHandler {
	return &WithdrawalHandler{commands: commands, withdraws: withdraws}
}

type createWithdrawRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	PixKey  string          `json:"pix_key"`
	PixType string          `json:"pix_type"`
}

func (r createWithdrawRequest) Validate() []FieldError {
	var errs []FieldError
	if !r.Amount.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if r.PixKey == "" {
		errs = append(errs, FieldError{Field: "pix_key", Message: "required"})
	}
	if r.PixType == "" {
		errs = append(errs, FieldError{Field: "pix_type", Message: "required"})
	} else if !domain.PixType(r.PixType).IsValid() {
		errs = append(errs, FieldError{Field: "pix_type", Message: "must be cpf, cnpj, email, phone, or random"})
	}
	return errs
}

type withdrawDTO struct {
	ID            uuid.UUID     `json:"id"`
	Amount        string        `json:"amount"`
	AmountCents   int64         `json:"amount_cents"`
	Status        domain.Status `json:"status"`
	PixKey        string        `json:"pix_key,omitempty"`
	PixType       string        `json:"pix_type,omitempty"`
	FailureReason *string       `json:"failure_reason,omitempty"`
	CreatedAt     *time.Time    `json:"created_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

func toWithdrawDTO(wd *domain.Withdraw) withdrawDTO {
	return withdrawDTO{
		ID:            wd.ID,
		Amount:        money.Format(wd.Amount),
		AmountCents:   wd.Amount,
		Status:        wd.Status,
		PixKey:        wd.PixKey,
		PixType:       string(wd.PixType),
		FailureReason: wd.FailureReason,
		CreatedAt:     &wd.CreatedAt,
		CompletedAt:   wd.CompletedAt,
	}
}

// Create answers 201 when the payout concluded and 202 while the gateway
// outcome is still pending.
func (h *WithdrawalHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createWithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	res := h.commands.CreateWithdraw(r.Context(), userID, req.Amount, req.PixKey, domain.PixType(req.PixType))
	if !res.Success {
		log.Warn("withdrawal failed", "error", res.Err)
		RespondDomainError(w, res.Err)
		return
	}

	status := http.StatusCreated
	if !res.Data.Status.IsTerminal() {
		status = http.StatusAccepted
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/withdrawals/%s", res.Data.WithdrawID))
	RespondSuccess(w, status, map[string]any{
		"id":           res.Data.WithdrawID,
		"amount":       money.Format(res.Data.Amount),
		"amount_cents": res.Data.Amount,
		"status":       res.Data.Status,
		"message":      res.Message,
	})
}

func (h *WithdrawalHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}

	wd, err := h.withdraws.Get(r.Context(), userID, id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("withdrawal lookup failed", "withdraw_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toWithdrawDTO(wd))
}

func (h *WithdrawalHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page := pageFromQuery(r)

	withdraws, total, err := h.withdraws.List(r.Context(), userID, page)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list withdrawals", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]withdrawDTO, 0, len(withdraws))
	for i := range withdraws {
		dtos = append(dtos, toWithdrawDTO(&withdraws[i]))
	}
	RespondPage(w, dtos, page, total)
}
