// Package domain defines the checkout order model and the rules that govern it.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the current state of an order in its lifecycle
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusInProcess OrderStatus = "in_process"
	StatusApproved  OrderStatus = "approved"
	StatusRejected  OrderStatus = "rejected"
	StatusCancelled OrderStatus = "cancelled"
	StatusRefunded  OrderStatus = "refunded"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProcess, StatusApproved, StatusRejected, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// IsTerminal reports whether s is approved, rejected, cancelled or refunded.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

// LineItem is a snapshot of one cart line at the time the order was created.
type LineItem struct {
	Title     string          `json:"title"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal returns UnitPrice * Quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is the durable record of a checkout attempt.
type Order struct {
	ID                uuid.UUID
	ExternalReference string
	GatewayOrderID    *string
	PaymentID         *string

	Status       OrderStatus
	StatusDetail string

	Currency    string
	TotalAmount decimal.Decimal
	Payer       Payer
	Items       []LineItem
	Metadata    json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPendingOrder builds the phase-1 record for a checkout attempt.
func NewPendingOrder(externalReference, currency string, total decimal.Decimal, payer Payer, items []LineItem) (*Order, error) {
	if externalReference == "" {
		return nil, NewMissingRequiredFieldError("external_reference")
	}
	if currency == "" {
		return nil, NewMissingRequiredFieldError("currency")
	}

	now := time.Now().UTC()
	return &Order{
		ID:                uuid.New(),
		ExternalReference: externalReference,
		Status:            StatusPending,
		Currency:          currency,
		TotalAmount:       total,
		Payer:             payer,
		Items:             items,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// HasSnapshot reports whether items and total were already captured.
func (o *Order) HasSnapshot() bool {
	return len(o.Items) > 0 && !o.TotalAmount.IsZero()
}

// Apply merges an observed update into the order. Items, total and payer are
// snapshotted once and never overwritten afterwards. A terminal status is never
// replaced by pending or in_process, so late deliveries cannot revert an order.
func (o *Order) Apply(u PaymentUpdate) {
	if u.PaymentID != "" && o.PaymentID == nil {
		id := u.PaymentID
		o.PaymentID = &id
	}
	if u.GatewayOrderID != "" && o.GatewayOrderID == nil {
		id := u.GatewayOrderID
		o.GatewayOrderID = &id
	}
	if o.ExternalReference == "" {
		o.ExternalReference = u.ExternalReference
	}

	if o.CanMoveTo(u.Status) {
		o.Status = u.Status
		o.StatusDetail = u.StatusDetail
	}

	if !o.HasSnapshot() {
		if len(u.Lines) > 0 {
			o.Items = u.Lines
		}
		if !u.TotalAmount.IsZero() {
			o.TotalAmount = u.TotalAmount
		}
		if u.Currency != "" {
			o.Currency = u.Currency
		}
	}
	if o.Payer.IsZero() {
		o.Payer = u.Payer
	}
	if len(o.Metadata) == 0 && len(u.Metadata) > 0 {
		o.Metadata = u.Metadata
	}

	observed := u.OccurredAt
	if observed.IsZero() {
		observed = time.Now().UTC()
	}
	if observed.After(o.UpdatedAt) {
		o.UpdatedAt = observed
	} else {
		o.UpdatedAt = time.Now().UTC()
	}
}

// CanMoveTo reports whether the order may take target as its new status.
//
// Non-terminal orders accept any status. Terminal orders accept only other
// terminal statuses (e.g. approved -> refunded).
func (o *Order) CanMoveTo(target OrderStatus) bool {
	if !target.Valid() {
		return false
	}
	if o.Status.IsTerminal() {
		return target.IsTerminal()
	}
	return true
}

// StatusHistoryEntry is one append-only record of an observed status.
type StatusHistoryEntry struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	PaymentID    string
	Status       OrderStatus
	StatusDetail string
	ObservedAt   time.Time
}

// NewStatusHistoryEntry records the status carried by u for orderID.
func NewStatusHistoryEntry(orderID uuid.UUID, u PaymentUpdate) StatusHistoryEntry {
	observed := u.OccurredAt
	if observed.IsZero() {
		observed = time.Now().UTC()
	}
	return StatusHistoryEntry{
		ID:           uuid.New(),
		OrderID:      orderID,
		PaymentID:    u.PaymentID,
		Status:       u.Status,
		StatusDetail: u.StatusDetail,
		ObservedAt:   observed,
	}
}

// PaymentAttempt numbers the buyer's current payment attempt on an order:
// the count of distinct payments the history shows as rejected or cancelled.
func PaymentAttempt(history []StatusHistoryEntry) int {
	failed := make(map[string]struct{})
	for _, e := range history {
		if e.PaymentID == "" {
			continue
		}
		if e.Status == StatusRejected || e.Status == StatusCancelled {
			failed[e.PaymentID] = struct{}{}
		}
	}
	return len(failed)
}
