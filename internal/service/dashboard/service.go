package dashboard

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/repository"
)

type affiliateRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Affiliate, error)
	CountReferred(ctx context.Context, affiliateID uuid.UUID) (int, error)
}

type commissionRepo interface {
	TotalsByAffiliate(ctx context.Context, affiliateID uuid.UUID) (*repository.CommissionTotals, error)
}

type withdrawRepo interface {
	SumPaidByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type linker interface {
	Link(code string) string
}

type Summary struct {
	AffiliateCode       string
	AffiliateURL        string
	CommissionPercent   decimal.Decimal
	TotalCommission     int64
	TotalWithdrawn      int64
	AvailableToWithdraw int64
	TotalDeposits       int64
	CommissionCount     int
	ReferredUsers       int
}

type Service struct {
	affiliates  affiliateRepo
	commissions commissionRepo
	withdraws   withdrawRepo
	links       linker
}

func NewService(affiliates affiliateRepo, commissions commissionRepo, withdraws withdrawRepo, links linker) *Service {
	return &Service{
		affiliates:  affiliates,
		commissions: commissions,
		withdraws:   withdraws,
		links:       links,
	}
}

// Summary aggregates an affiliate's earnings. Users who are not affiliates get domain.ErrNotFound.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	a, err := s.affiliates.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	totals, err := s.commissions.TotalsByAffiliate(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	withdrawn, err := s.withdraws.SumPaidByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	referred, err := s.affiliates.CountReferred(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	return &Summary{
		AffiliateCode:       a.AffiliateCode,
		AffiliateURL:        s.links.Link(a.AffiliateCode),
		CommissionPercent:   a.CommissionPercent,
		TotalCommission:     totals.Total,
		TotalWithdrawn:      withdrawn,
		AvailableToWithdraw: max(0, totals.Total-withdrawn),
		TotalDeposits:       impliedDeposits(totals.DepositTotal, a.CommissionPercent),
		CommissionCount:     totals.Count,
		ReferredUsers:       referred,
	}, nil
}

// impliedDeposits estimates the referred deposit volume from the commission it produced.
func impliedDeposits(commission int64, pct decimal.Decimal) int64 {
	if !pct.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(commission).Div(pct).Round(0).IntPart()
}
