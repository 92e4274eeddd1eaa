package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/pix-ledger/internal/auth"
	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
)

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type referralResolver interface {
	ResolveReferral(ctx context.Context, code string) (*domain.Affiliate, error)
}

type tokenIssuer interface {
	Issue(userID uuid.UUID, email string) (auth.Token, error)
}

type AuthHandler struct {
	users     userStore
	referrals referralResolver
	tokens    tokenIssuer
	hashCost  int
}

func NewAuthHandler(users userStore, referrals referralResolver, tokens tokenIssuer) *AuthHandler {
	return &AuthHandler{
		users:     users,
		referrals: referrals,
		tokens:    tokens,
		hashCost:  bcrypt.DefaultCost,
	}
}

type registerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Document     string `json:"document"`
	ReferralCode string `json:"referral_code"`
}

func (r registerRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	if r.Email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "required"})
	} else if _, err := mail.ParseAddress(r.Email); err != nil {
		errs = append(errs, FieldError{Field: "email", Message: "must be a valid email"})
	}
	if len(r.Password) < 8 {
		errs = append(errs, FieldError{Field: "password", Message: "must have at least 8 characters"})
	}
	if _, err := domain.NormalizeDocument(r.Document); err != nil {
		errs = append(errs, FieldError{Field: "document", Message: "must be a CPF or CNPJ"})
	}
	return errs
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "required"})
	}
	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "required"})
	}
	return errs
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userDTO   `json:"user"`
}

func newTokenResponse(t auth.Token, u *domain.User) tokenResponse {
	return tokenResponse{Token: t.Value, ExpiresAt: t.ExpiresAt.UTC(), User: toUserDTO(u)}
}

type userDTO struct {
	ID         uuid.UUID  `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	ReferredBy *uuid.UUID `json:"referred_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toUserDTO(u *domain.User) userDTO {
	return userDTO{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		ReferredBy: u.ReferredBy,
		CreatedAt:  u.CreatedAt,
	}
}

// Register creates a user. A referral code may come in the body or as ?ref=.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.ReferralCode == "" {
		req.ReferralCode = r.URL.Query().Get("ref")
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}
	document, _ := domain.NormalizeDocument(req.Document)

	var referredBy *uuid.UUID
	if req.ReferralCode != "" {
		aff, err := h.referrals.ResolveReferral(r.Context(), req.ReferralCode)
		if err != nil {
			log.Info("registration with unusable referral code", "referral_code", req.ReferralCode, "error", err)
			RespondDomainError(w, err)
			return
		}
		referredBy = &aff.ID
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.hashCost)
	if err != nil {
		log.Error("failed to hash password", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		Document:     document,
		PasswordHash: string(hash),
		ReferredBy:   referredBy,
		Status:       domain.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if !errors.Is(err, domain.ErrEmailTaken) {
			log.Error("failed to create user", "error", err)
		}
		RespondDomainError(w, err)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		log.Error("failed to issue token", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	log.Info("user registered", "user_id", user.ID, "referred", referredBy != nil)
	RespondSuccess(w, http.StatusCreated, newTokenResponse(token, user))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	user, err := h.users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			RespondAppError(w, ErrInvalidCredentials, nil)
			return
		}
		RespondDomainError(w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		RespondAppError(w, ErrInvalidCredentials, nil)
		return
	}
	if user.Status != domain.UserStatusActive {
		RespondAppError(w, ErrForbidden, nil)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to issue token", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	RespondSuccess(w, http.StatusOK, newTokenResponse(token, user))
}
