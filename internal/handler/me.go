package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
	"github.com/josh-kwaku/pix-ledger/internal/money"
)

type userGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type balanceReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*domain.Ledger, error)
	Movements(ctx context.Context, userID uuid.UUID, page domain.Page) ([]domain.Movement, int, error)
}

type MeHandler struct {
	users  userGetter
	ledger balanceReader
}

func NewMeHandler(users userGetter, ledger balanceReader) *MeHandler {
	return &MeHandler{users: users, ledger: ledger}
}

type balanceDTO struct {
	Available      string     `json:"available"`
	AvailableCents int64      `json:"available_cents"`
	Blocked        string     `json:"blocked"`
	BlockedCents   int64      `json:"blocked_cents"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

type movementDTO struct {
	ID             uuid.UUID `json:"id"`
	Kind           string    `json:"kind"`
	Amount         string    `json:"amount"`
	AmountCents    int64     `json:"amount_cents"`
	ReferenceID    uuid.UUID `json:"reference_id"`
	AvailableAfter string    `json:"available_after"`
	BlockedAfter   string    `json:"blocked_after"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to get user", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toUserDTO(user))
}

func (h *MeHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	l, err := h.ledger.Get(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to read balance", "error", err)
		RespondDomainError(w, err)
		return
	}

	dto := balanceDTO{
		Available:      money.Format(l.TotalAmount),
		AvailableCents: l.TotalAmount,
		Blocked:        money.Format(l.TotalBlocked),
		BlockedCents:   l.TotalBlocked,
	}
	if !l.UpdatedAt.IsZero() {
		dto.UpdatedAt = &l.UpdatedAt
	}
	RespondSuccess(w, http.StatusOK, dto)
}

// Movements lists the caller's ledger journal, newest first.
func (h *MeHandler) Movements(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page := pageFromQuery(r)

	movements, total, err := h.ledger.Movements(r.Context(), userID, page)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list movements", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]movementDTO, 0, len(movements))
	for _, m := range movements {
		dtos = append(dtos, movementDTO{
			ID:             m.ID,
			Kind:           string(m.Kind),
			Amount:         money.Format(m.Amount),
			AmountCents:    m.Amount,
			ReferenceID:    m.ReferenceID,
			AvailableAfter: money.Format(m.TotalAmountAfter),
			BlockedAfter:   money.Format(m.TotalBlockedAfter),
			CreatedAt:      m.CreatedAt,
		})
	}
	RespondPage(w, dtos, page, total)
}
