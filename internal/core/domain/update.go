package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UpdateSource records which shape produced a PaymentUpdate.
type UpdateSource string

const (
	SourcePaymentEvent UpdateSource = "payment"
	SourceOrderEvent   UpdateSource = "order"
	SourceCheckout     UpdateSource = "checkout"
	SourceSweeper      UpdateSource = "sweeper"
)

// PaymentUpdate is the single normalized input of the reconciler.
type PaymentUpdate struct {
	Source            UpdateSource
	PaymentID         string
	GatewayOrderID    string
	ExternalReference string
	Status            OrderStatus
	StatusDetail      string
	TotalAmount       decimal.Decimal
	Currency          string
	Payer             Payer
	Lines             []LineItem
	Metadata          json.RawMessage
	OccurredAt        time.Time
}

// Validate checks the fields the reconciler depends on.
func (u PaymentUpdate) Validate() error {
	if u.PaymentID == "" {
		return NewMissingRequiredFieldError("payment_id")
	}
	if !u.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown status " + string(u.Status)}
	}
	return nil
}

// PaymentStatusFromGateway maps a gateway payment status to an order status.
func PaymentStatusFromGateway(status string) OrderStatus {
	switch strings.ToLower(status) {
	case "approved":
		return StatusApproved
	case "in_process", "authorized", "in_mediation":
		return StatusInProcess
	case "rejected":
		return StatusRejected
	case "cancelled":
		return StatusCancelled
	case "refunded", "charged_back":
		return StatusRefunded
	default:
		return StatusPending
	}
}

// OrderStatusFromGateway maps a gateway order status to an order status.
func OrderStatusFromGateway(status string) OrderStatus {
	switch strings.ToLower(status) {
	case "processed", "approved", "closed":
		return StatusApproved
	case "processing", "action_required", "in_process":
		return StatusInProcess
	case "failed", "rejected":
		return StatusRejected
	case "cancelled", "canceled", "expired":
		return StatusCancelled
	case "refunded", "charged_back":
		return StatusRefunded
	default:
		return StatusPending
	}
}
