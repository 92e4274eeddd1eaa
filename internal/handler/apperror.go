package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken       = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken       = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCredentials = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"}
	ErrInvalidSignature   = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
	ErrForbidden          = &AppError{http.StatusForbidden, "FORBIDDEN", "Operation not allowed"}
	ErrInvalidRequest     = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed   = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound   = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError      = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAmount         = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be a positive value in reais with at most the allowed maximum"}
	ErrInvalidDocument       = &AppError{http.StatusBadRequest, "INVALID_DOCUMENT", "Document must be a CPF or CNPJ"}
	ErrInvalidPixKey         = &AppError{http.StatusBadRequest, "INVALID_PIX_KEY", "PIX key does not match its type"}
	ErrInvalidGatewayStatus  = &AppError{http.StatusBadRequest, "INVALID_STATUS", "Unknown payment status"}
	ErrInsufficientBalance   = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Insufficient balance"}
	ErrInvalidTransition     = &AppError{http.StatusConflict, "INVALID_TRANSITION", "Operation is not valid in the current status"}
	ErrConcurrencyConflict   = &AppError{http.StatusConflict, "CONCURRENCY_CONFLICT", "Balance is being updated, please retry"}
	ErrEmailTaken            = &AppError{http.StatusConflict, "EMAIL_TAKEN", "Email already registered"}
	ErrAlreadyAffiliate      = &AppError{http.StatusConflict, "ALREADY_AFFILIATE", "User is already an affiliate"}
	ErrInvalidReferral       = &AppError{http.StatusBadRequest, "INVALID_REFERRAL", "Referral code does not exist"}
	ErrGatewayRejected       = &AppError{http.StatusBadGateway, "GATEWAY_REJECTED", "The payment provider refused the operation"}
	ErrGatewayUnavailable    = &AppError{http.StatusBadGateway, "GATEWAY_UNAVAILABLE", "The payment provider is unavailable"}
	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrRequestInProgress     = &AppError{http.StatusConflict, "REQUEST_IN_PROGRESS", "A request with this idempotency key is still being processed"}
)
