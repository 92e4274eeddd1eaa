package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
)

type withdrawResolver interface {
	Resolve(ctx context.Context, id uuid.UUID, status domain.Status, reason string) (*domain.Withdraw, error)
}

// AdminHandler serves operator endpoints. Authentication is done by middleware.AdminToken.
type AdminHandler struct {
	withdrawals withdrawResolver
}

func NewAdminHandler(withdrawals withdrawResolver) *AdminHandler {
	return &AdminHandler{withdrawals: withdrawals}
}

type resolveWithdrawRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

var resolvableStatuses = map[string]domain.Status{
	"paid":      domain.StatusPaid,
	"reproved":  domain.StatusReproved,
	"error":     domain.StatusError,
	"cancelled": domain.StatusCancelled,
}

func (r resolveWithdrawRequest) Validate() []FieldError {
	var errs []FieldError
	if _, ok := resolvableStatuses[r.Status]; !ok {
		errs = append(errs, FieldError{Field: "status", Message: "must be paid, reproved, error, or cancelled"})
	}
	if r.Reason == "" {
		errs = append(errs, FieldError{Field: "reason", Message: "required"})
	}
	return errs
}

// ResolveWithdrawal concludes a withdrawal stuck in Created after an ambiguous payout.
func (h *AdminHandler) ResolveWithdrawal(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	id, ok := idFromPath(w, r)
	if !ok {
		return
	}

	var req resolveWithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	wd, err := h.withdrawals.Resolve(r.Context(), id, resolvableStatuses[req.Status], req.Reason)
	if err != nil {
		log.Warn("withdrawal resolution failed", "withdraw_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	log.Info("withdrawal resolved by operator", "withdraw_id", id, "status", wd.Status, "reason", req.Reason)
	RespondSuccess(w, http.StatusOK, toWithdrawDTO(wd))
}
