package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	// Field names the offending input for MISSING_REQUIRED_FIELD.
	Field string
	Err   error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeOrderNotFound    = "ORDER_NOT_FOUND"
	ErrCodeMissingField     = "MISSING_REQUIRED_FIELD"
	ErrCodeBelowMinimum     = "BELOW_MINIMUM_AMOUNT"
	ErrCodeUnsupportedSize  = "UNSUPPORTED_SIZE"
	ErrCodeEmptyCart        = "EMPTY_CART"
	ErrCodeUnknownCurrency  = "UNKNOWN_CURRENCY"
	ErrCodeResourceNotFound = "GATEWAY_RESOURCE_NOT_FOUND"
)

var (
	ErrOrderNotFound = &DomainError{Code: ErrCodeOrderNotFound, Message: "order not found"}
	// ErrDuplicateOrder is returned by the repository when a concurrent writer
	// won a unique constraint. The reconcile can be retried safely.
	ErrDuplicateOrder = errors.New("order already exists")
)

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingField,
		Message: fmt.Sprintf("missing required field: %s", field),
		Field:   field,
	}
}

// ValidationError names the first field that failed local validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FailureCategory tells callers which retry policy applies to a PaymentError.
type FailureCategory string

const (
	// CategoryValidation failures are detected locally; nothing was sent upstream.
	CategoryValidation FailureCategory = "validation"
	// CategoryRejection failures are 4xx answers from the gateway. Not retried.
	CategoryRejection FailureCategory = "rejection"
	// CategoryTransient failures (5xx, timeout, network) may be retried with
	// the same idempotency key.
	CategoryTransient FailureCategory = "transient"
)

// PaymentError is the typed failure returned by the checkout flow.
type PaymentError struct {
	Category       FailureCategory
	Code           FailureCode
	ProviderCode   string
	IdempotencyKey string
	Err            error
}

func (e *PaymentError) Error() string {
	msg := fmt.Sprintf("%s payment failure (%s)", e.Category, e.Code)
	if e.ProviderCode != "" {
		msg += " provider_code=" + e.ProviderCode
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry with the same idempotency key.
func (e *PaymentError) Retryable() bool {
	return e.Category == CategoryTransient
}

// NewValidationFailure wraps a local validation error.
func NewValidationFailure(err error) *PaymentError {
	return &PaymentError{Category: CategoryValidation, Code: FailureValidation, Err: err}
}

// NewTransientFailure wraps a retryable transport or server error.
func NewTransientFailure(key string, err error) *PaymentError {
	return &PaymentError{Category: CategoryTransient, Code: FailureTemporary, IdempotencyKey: key, Err: err}
}

// NewRejection translates a provider code into a stable internal code.
func NewRejection(providerCode string, err error) *PaymentError {
	return &PaymentError{
		Category:     CategoryRejection,
		Code:         TranslateProviderCode(providerCode),
		ProviderCode: providerCode,
		Err:          err,
	}
}

// IsTransient reports whether err carries the transient category.
func IsTransient(err error) bool {
	var pe *PaymentError
	return errors.As(err, &pe) && pe.Retryable()
}
