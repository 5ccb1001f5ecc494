package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"golang.org/x/text/language"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Field names the offending input on validation errors.
	Field string `json:"field,omitempty"`
	// IdempotencyKey is returned on transient failures so the caller can
	// retry the same attempt.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
	}

	if response.Success {
		response.Data = data
	} else {
		if apiErr, ok := data.(*APIError); ok {
			response.Error = apiErr
		}
	}

	_ = json.NewEncoder(w).Encode(response)
}

// respondWithError maps err onto a status and a message in the caller's
// language. Provider codes and internal error text are never sent.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	lang := requestLanguage(r)
	status, apiErr := errorResponse(err, lang)

	if apiErr.Message == "" {
		code := domain.FailureCode(apiErr.Code)
		if status == http.StatusInternalServerError {
			code = domain.FailureGeneric
		}
		apiErr.Message = code.Message(lang)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "2")
	}

	respondWithJSON(w, status, apiErr)
}

func errorResponse(err error, lang language.Tag) (int, *APIError) {
	var (
		paymentErr *domain.PaymentError
		validErr   *domain.ValidationError
		domainErr  *domain.DomainError
	)

	switch {
	case errors.As(err, &paymentErr):
		apiErr := &APIError{Code: string(paymentErr.Code)}
		if errors.As(err, &validErr) {
			apiErr.Field = validErr.Field
		}
		switch paymentErr.Category {
		case domain.CategoryValidation:
			return http.StatusBadRequest, apiErr
		case domain.CategoryRejection:
			return http.StatusUnprocessableEntity, apiErr
		default:
			apiErr.IdempotencyKey = paymentErr.IdempotencyKey
			return http.StatusServiceUnavailable, apiErr
		}

	case errors.As(err, &validErr):
		return http.StatusBadRequest, &APIError{Code: string(domain.FailureValidation), Field: validErr.Field}

	case errors.As(err, &domainErr):
		status := http.StatusBadRequest
		if domainErr.Code == domain.ErrCodeOrderNotFound {
			status = http.StatusNotFound
		}
		return status, &APIError{Code: domainErr.Code, Message: domainErr.LocalizedMessage(lang), Field: domainErr.Field}

	default:
		return http.StatusInternalServerError, &APIError{Code: "INTERNAL_ERROR"}
	}
}
