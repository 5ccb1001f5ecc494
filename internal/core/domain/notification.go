package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentNotificationData is the fixed contract handed to the email sender.
type PaymentNotificationData struct {
	OrderID           string          `json:"order_id"`
	ExternalReference string          `json:"external_reference"`
	PaymentID         string          `json:"payment_id"`
	Status            OrderStatus     `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Payer             Payer           `json:"payer"`
	Items             []LineItem      `json:"items"`
	CreatedAt         time.Time       `json:"created_at"`
	ApprovedAt        time.Time       `json:"approved_at"`
}

// Recipient selects which template the mailer renders.
type Recipient string

const (
	RecipientOperator Recipient = "operator"
	RecipientCustomer Recipient = "customer"
)

// NewPaymentNotificationData snapshots an approved order.
func NewPaymentNotificationData(o *Order) PaymentNotificationData {
	data := PaymentNotificationData{
		OrderID:           o.ID.String(),
		ExternalReference: o.ExternalReference,
		Status:            o.Status,
		StatusDetail:      o.StatusDetail,
		Amount:            o.TotalAmount,
		Currency:          o.Currency,
		Payer:             o.Payer,
		Items:             o.Items,
		CreatedAt:         o.CreatedAt,
		ApprovedAt:        o.UpdatedAt,
	}
	if o.PaymentID != nil {
		data.PaymentID = *o.PaymentID
	}
	return data
}
