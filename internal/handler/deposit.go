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

type depositCommands interface {
	CreateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, document string) command.Response[command.DepositResult]
}

type depositReader interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.Deposit, error)
	List(ctx context.Context, userID uuid.UUID, page domain.Page) ([]domain.Deposit, int, error)
}

type DepositHandler struct {
	commands depositCommands
	deposits depositReader
}

func NewDepositHandler(commands depositCommands, deposits depositReader) *DepositHandler {
	return &DepositHandler{commands: commands, deposits: deposits}
}

type createDepositRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Document string          `json:"document"`
}

func (r createDepositRequest) Validate() []FieldError {
	var errs []FieldError
	if !r.Amount.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if r.Document == "" {
		errs = append(errs, FieldError{Field: "document", Message: "required"})
	}
	return errs
}

type depositDTO struct {
	ID           uuid.UUID     `json:"id"`
	Amount       string        `json:"amount"`
	AmountCents  int64         `json:"amount_cents"`
	Status       domain.Status `json:"status"`
	ExternalID   string        `json:"external_id,omitempty"`
	PaymentCode  string        `json:"payment_code,omitempty"`
	QRCodeBase64 string        `json:"qr_code_base64,omitempty"`
	CreatedAt    *time.Time    `json:"created_at,omitempty"`
	SettledAt    *time.Time    `json:"settled_at,omitempty"`
}

func toDepositDTO(d *domain.Deposit) depositDTO {
	dto := depositDTO{
		ID:          d.ID,
		Amount:      money.Format(d.Amount),
		AmountCents: d.Amount,
		Status:      d.Status,
		CreatedAt:   &d.CreatedAt,
		SettledAt:   d.SettledAt,
	}
	if d.ExternalID != nil {
		dto.ExternalID = *d.ExternalID
	}
	if d.PaymentCode != nil {
		dto.PaymentCode = *d.PaymentCode
	}
	if d.QRCodeBase64 != nil {
		dto.QRCodeBase64 = *d.QRCodeBase64
	}
	return dto
}

func (h *DepositHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	res := h.commands.CreateDeposit(r.Context(), userID, req.Amount, req.Document)
	if !res.Success {
		log.Warn("deposit creation failed", "error", res.Err)
		RespondDomainError(w, res.Err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/deposits/%s", res.Data.DepositID))
	RespondSuccess(w, http.StatusCreated, depositDTO{
		ID:           res.Data.DepositID,
		Amount:       money.Format(res.Data.Amount),
		AmountCents:  res.Data.Amount,
		Status:       res.Data.Status,
		ExternalID:   res.Data.ExternalID,
		PaymentCode:  res.Data.PaymentCode,
		QRCodeBase64: res.Data.QRCodeBase64,
	})
}

func (h *DepositHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}

	d, err := h.deposits.Get(r.Context(), userID, id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("deposit lookup failed", "deposit_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toDepositDTO(d))
}

func (h *DepositHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page := pageFromQuery(r)

	deposits, total, err := h.deposits.List(r.Context(), userID, page)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list deposits", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]depositDTO, 0, len(deposits))
	for i := range deposits {
		dto := toDepositDTO(&deposits[i])
		dto.QRCodeBase64 = ""
		dtos = append(dtos, dto)
	}
	RespondPage(w, dtos, page, total)
}
