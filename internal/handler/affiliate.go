package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
	"github.com/josh-kwaku/pix-ledger/internal/money"
	"github.com/josh-kwaku/pix-ledger/internal/service/dashboard"
)

type affiliateService interface {
	Register(ctx context.Context, userID uuid.UUID) (*domain.Affiliate, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Affiliate, error)
	Link(code string) string
}

type dashboardService interface {
	Summary(ctx context.Context, userID uuid.UUID) (*dashboard.Summary, error)
}

type AffiliateHandler struct {
	affiliates affiliateService
	dashboard  dashboardService
}

func NewAffiliateHandler(affiliates affiliateService, dashboard dashboardService) *AffiliateHandler {
	return &AffiliateHandler{affiliates: affiliates, dashboard: dashboard}
}

type affiliateDTO struct {
	ID                uuid.UUID       `json:"id"`
	AffiliateCode     string          `json:"affiliate_code"`
	AffiliateURL      string          `json:"affiliate_url"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	CommissionType    string          `json:"commission_type"`
}

type dashboardDTO struct {
	AffiliateCode       string          `json:"affiliate_code"`
	AffiliateURL        string          `json:"affiliate_url"`
	CommissionPercent   decimal.Decimal `json:"commission_percent"`
	TotalCommission     string          `json:"total_commission"`
	TotalWithdrawn      string          `json:"total_withdrawn"`
	AvailableToWithdraw string          `json:"available_to_withdraw"`
	TotalDeposits       string          `json:"total_deposits"`
	CommissionCount     int             `json:"commission_count"`
	ReferredUsers       int             `json:"referred_users"`
}

func (h *AffiliateHandler) toDTO(a *domain.Affiliate) affiliateDTO {
	return affiliateDTO{
		ID:                a.ID,
		AffiliateCode:     a.AffiliateCode,
		AffiliateURL:      h.affiliates.Link(a.AffiliateCode),
		CommissionPercent: a.CommissionPercent,
		CommissionType:    string(a.CommissionType),
	}
}

func (h *AffiliateHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	a, err := h.affiliates.Register(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, domain.ErrAlreadyAffiliate) {
			log.Error("affiliate registration failed", "error", err)
		}
		RespondDomainError(w, err)
		return
	}

	log.Info("affiliate registered", "affiliate_id", a.ID, "affiliate_code", a.AffiliateCode)
	RespondSuccess(w, http.StatusCreated, h.toDTO(a))
}

func (h *AffiliateHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	a, err := h.affiliates.GetByUser(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, h.toDTO(a))
}

func (h *AffiliateHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	s, err := h.dashboard.Summary(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logging.FromContext(r.Context()).Error("failed to build dashboard", "error", err)
		}
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, dashboardDTO{
		AffiliateCode:       s.AffiliateCode,
		AffiliateURL:        s.AffiliateURL,
		CommissionPercent:   s.CommissionPercent,
		TotalCommission:     money.Format(s.TotalCommission),
		TotalWithdrawn:      money.Format(s.TotalWithdrawn),
		AvailableToWithdraw: money.Format(s.AvailableToWithdraw),
		TotalDeposits:       money.Format(s.TotalDeposits),
		CommissionCount:     s.CommissionCount,
		ReferredUsers:       s.ReferredUsers,
	})
}
