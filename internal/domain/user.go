package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusClosed    UserStatus = "closed"
)

type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	Document     string
	PasswordHash string
	ReferredBy   *uuid.UUID
	Status       UserStatus
	CreatedAt    time.Time
}

// NormalizeDocument strips punctuation from a CPF or CNPJ and checks its length.
func NormalizeDocument(doc string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		if r == '.' || r == '-' || r == '/' || r == ' ' {
			return -1
		}
		return 'x'
	}, doc)
	if strings.ContainsRune(digits, 'x') || (len(digits) != 11 && len(digits) != 14) {
		return "", fmt.Errorf("NormalizeDocument: %w", ErrInvalidDocument)
	}
	return digits, nil
}
