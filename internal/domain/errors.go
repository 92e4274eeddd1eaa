package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientBlocked = errors.New("insufficient blocked balance")
	ErrVersionConflict     = errors.New("optimistic lock conflict")
	ErrConcurrencyConflict = errors.New("ledger busy, retry later")
	ErrGateway             = errors.New("payment gateway error")
	ErrUnknownDeposit      = errors.New("unknown deposit")
	ErrDuplicateEvent      = errors.New("duplicate event")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrAlreadyAffiliate    = errors.New("user is already an affiliate")
	ErrAffiliateCodeTaken  = errors.New("affiliate code already in use")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidReferral     = errors.New("unknown referral code")
)

// Validation failures wrap ErrValidation so callers can classify them in one check.
var (
	ErrInvalidAmount   = fmt.Errorf("invalid amount: %w", ErrValidation)
	ErrInvalidDocument = fmt.Errorf("invalid document: %w", ErrValidation)
	ErrInvalidPixKey   = fmt.Errorf("invalid pix key: %w", ErrValidation)
	ErrInvalidPixType  = fmt.Errorf("invalid pix type: %w", ErrValidation)
	ErrInvalidStatus   = fmt.Errorf("invalid gateway status: %w", ErrValidation)
)

// Gateway failures wrap ErrGateway. Rejected means the gateway refused the
// operation; ambiguous means the outcome is unknown (timeout, 5xx, transport).
// NotSent means the operation request itself never left the client.
var (
	ErrGatewayRejected  = fmt.Errorf("rejected: %w", ErrGateway)
	ErrGatewayAmbiguous = fmt.Errorf("outcome unknown: %w", ErrGateway)
	ErrGatewayNotSent   = fmt.Errorf("request not sent: %w", ErrGateway)
)
