package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type PixType string

const (
	PixTypeCPF    PixType = "cpf"
	PixTypeCNPJ   PixType = "cnpj"
	PixTypeEmail  PixType = "email"
	PixTypePhone  PixType = "phone"
	PixTypeRandom PixType = "random"
)

func (t PixType) IsValid() bool {
	switch t {
	case PixTypeCPF, PixTypeCNPJ, PixTypeEmail, PixTypePhone, PixTypeRandom:
		return true
	default:
		return false
	}
}

// ValidatePixKey checks that key is plausible for its type and returns it trimmed.
func ValidatePixKey(key string, t PixType) (string, error) {
	if !t.IsValid() {
		return "", fmt.Errorf("ValidatePixKey: %q: %w", t, ErrInvalidPixType)
	}
	key = strings.TrimSpace(key)
	if key == "" || len(key) > 140 {
		return "", fmt.Errorf("ValidatePixKey: %w", ErrInvalidPixKey)
	}

	switch t {
	case PixTypeCPF, PixTypeCNPJ:
		doc, err := NormalizeDocument(key)
		if err != nil || (t == PixTypeCPF) != (len(doc) == 11) {
			return "", fmt.Errorf("ValidatePixKey: %s: %w", t, ErrInvalidPixKey)
		}
		return doc, nil
	case PixTypeEmail:
		at := strings.IndexByte(key, '@')
		if at <= 0 || at == len(key)-1 {
			return "", fmt.Errorf("ValidatePixKey: email: %w", ErrInvalidPixKey)
		}
	case PixTypePhone:
		digits := strings.TrimPrefix(key, "+")
		if len(digits) < 10 || len(digits) > 13 || strings.Trim(digits, "0123456789") != "" {
			return "", fmt.Errorf("ValidatePixKey: phone: %w", ErrInvalidPixKey)
		}
	}
	return key, nil
}

type Withdraw struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Amount        int64
	PixKey        string
	PixType       PixType
	Status        Status
	ExternalID    *string
	FailureReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}
