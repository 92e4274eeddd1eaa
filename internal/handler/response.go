package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
	Meta    *PageMeta `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type PageMeta struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondPage(w http.ResponseWriter, data any, page domain.Page, total int) {
	RespondJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &PageMeta{Page: page.Number, PageSize: page.Size, Total: total},
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

func RespondDomainError(w http.ResponseWriter, err error) {
	RespondAppError(w, appErrorFor(err), nil)
}

func appErrorFor(err error) *AppError {
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, domain.ErrNotFound):
		return ErrResourceNotFound
	case errors.Is(err, domain.ErrInvalidAmount):
		return ErrInvalidAmount
	case errors.Is(err, domain.ErrInvalidDocument):
		return ErrInvalidDocument
	case errors.Is(err, domain.ErrInvalidPixKey), errors.Is(err, domain.ErrInvalidPixType):
		return ErrInvalidPixKey
	case errors.Is(err, domain.ErrInvalidStatus):
		return ErrInvalidGatewayStatus
	case errors.Is(err, domain.ErrValidation):
		return ErrValidationFailed
	case errors.Is(err, domain.ErrInsufficientBalance):
		return ErrInsufficientBalance
	case errors.Is(err, domain.ErrInvalidTransition):
		return ErrInvalidTransition
	case errors.Is(err, domain.ErrConcurrencyConflict), errors.Is(err, domain.ErrVersionConflict):
		return ErrConcurrencyConflict
	case errors.Is(err, domain.ErrEmailTaken):
		return ErrEmailTaken
	case errors.Is(err, domain.ErrAlreadyAffiliate):
		return ErrAlreadyAffiliate
	case errors.Is(err, domain.ErrInvalidReferral):
		return ErrInvalidReferral
	case errors.Is(err, domain.ErrGatewayRejected):
		return ErrGatewayRejected
	case errors.Is(err, domain.ErrGateway):
		return ErrGatewayUnavailable
	default:
		slog.Error("unhandled domain error", "error", err)
		return ErrInternalError
	}
}

func pageFromQuery(r *http.Request) domain.Page {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	return domain.NewPage(number, size)
}
