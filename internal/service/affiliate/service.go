package affiliate

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
)

const (
	codeLength   = 8
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeAttempts = 5
)

type affiliateRepo interface {
	Create(ctx context.Context, a *domain.Affiliate) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Affiliate, error)
	GetByCode(ctx context.Context, code string) (*domain.Affiliate, error)
}

type Service struct {
	affiliates     affiliateRepo
	defaultPercent decimal.Decimal
	baseURL        string
	newCode        func() (string, error)
}

func NewService(affiliates affiliateRepo, defaultPercent decimal.Decimal, baseURL string) *Service {
	return &Service{
		affiliates:     affiliates,
		defaultPercent: defaultPercent,
		baseURL:        baseURL,
		newCode:        generateCode,
	}
}

// Register makes userID an affiliate with a fresh referral code and the default percent.
func (s *Service) Register(ctx context.Context, userID uuid.UUID) (*domain.Affiliate, error) {
	for range codeAttempts {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("Register: generate code: %w", err)
		}

		a := &domain.Affiliate{
			ID:                uuid.New(),
			UserID:            userID,
			AffiliateCode:     code,
			CommissionPercent: s.defaultPercent,
			CommissionType:    domain.CommissionTypeDeposit,
			CreatedAt:         time.Now().UTC(),
		}
		err = s.affiliates.Create(ctx, a)
		if errors.Is(err, domain.ErrAffiliateCodeTaken) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("Register: %w", err)
		}

		logging.FromContext(ctx).Info("affiliate registered", "user_id", userID, "affiliate_id", a.ID, "code", code)
		return a, nil
	}
	return nil, fmt.Errorf("Register: %d attempts: %w", codeAttempts, domain.ErrAffiliateCodeTaken)
}

func (s *Service) GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Affiliate, error) {
	a, err := s.affiliates.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("GetByUser: %w", err)
	}
	return a, nil
}

// ResolveReferral maps a referral code to its affiliate. Unknown codes yield domain.ErrInvalidReferral.
func (s *Service) ResolveReferral(ctx context.Context, code string) (*domain.Affiliate, error) {
	a, err := s.affiliates.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("ResolveReferral: %w", domain.ErrInvalidReferral)
		}
		return nil, fmt.Errorf("ResolveReferral: %w", err)
	}
	return a, nil
}

// Link returns the shareable registration URL for an affiliate code.
func (s *Service) Link(code string) string {
	return s.baseURL + code
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
