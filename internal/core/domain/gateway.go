package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ResourceID is a gateway id that may arrive as a JSON string or number.
// Numbers are kept in their decimal text form.
type ResourceID string

func (id *ResourceID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ResourceID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ResourceID(n.String())
	return nil
}

// PaymentEvent is the gateway's payment resource as fetched by id.
type PaymentEvent struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	OrderID           string          `json:"order_id,omitempty"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	PaymentMethodID   string          `json:"payment_method_id"`
	Payer             Payer           `json:"payer"`
	Items             []LineItem      `json:"items,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	DateCreated       time.Time       `json:"date_created"`
	DateLastUpdated   time.Time       `json:"date_last_updated"`
}

func (e *PaymentEvent) UnmarshalJSON(b []byte) error {
	type plain PaymentEvent
	aux := struct {
		*plain
		ID ResourceID `json:"id"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.ID = string(aux.ID)
	return nil
}

// ToUpdate normalizes the payment resource into a reconcile input.
func (e PaymentEvent) ToUpdate() PaymentUpdate {
	return PaymentUpdate{
		Source:            SourcePaymentEvent,
		PaymentID:         e.ID,
		GatewayOrderID:    e.OrderID,
		ExternalReference: e.ExternalReference,
		Status:            PaymentStatusFromGateway(e.Status),
		StatusDetail:      e.StatusDetail,
		TotalAmount:       e.TransactionAmount,
		Currency:          e.CurrencyID,
		Payer:             e.Payer,
		Lines:             e.Items,
		Metadata:          e.Metadata,
		OccurredAt:        latest(e.DateLastUpdated, e.DateCreated),
	}
}

// OrderPayment is a payment embedded in an order resource.
type OrderPayment struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	StatusDetail string          `json:"status_detail"`
	Amount       decimal.Decimal `json:"amount"`
}

func (p *OrderPayment) UnmarshalJSON(b []byte) error {
	type plain OrderPayment
	aux := struct {
		*plain
		ID ResourceID `json:"id"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.ID = string(aux.ID)
	return nil
}

// OrderEvent is the gateway's order resource as fetched by id.
type OrderEvent struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Currency          string          `json:"currency"`
	Payer             Payer           `json:"payer"`
	Items             []LineItem      `json:"items"`
	Payments          []OrderPayment  `json:"payments"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	CreatedDate       time.Time       `json:"created_date"`
	LastUpdatedDate   time.Time       `json:"last_updated_date"`
}

// FirstPayment returns the first embedded payment, if any.
func (e OrderEvent) FirstPayment() (OrderPayment, bool) {
	if len(e.Payments) == 0 {
		return OrderPayment{}, false
	}
	return e.Payments[0], true
}

// ToUpdate normalizes the order resource using its first payment. It reports
// false when the order carries no payment yet.
func (e OrderEvent) ToUpdate() (PaymentUpdate, bool) {
	p, ok := e.FirstPayment()
	if !ok || p.ID == "" {
		return PaymentUpdate{}, false
	}

	status := OrderStatusFromGateway(e.Status)
	detail := e.StatusDetail
	if p.Status != "" {
		// The embedded payment is more precise than the order aggregate
		// unless the order already reached a terminal state.
		if ps := PaymentStatusFromGateway(p.Status); !status.IsTerminal() || ps.IsTerminal() {
			status = ps
			detail = p.StatusDetail
		}
	}

	return PaymentUpdate{
		Source:            SourceOrderEvent,
		PaymentID:         p.ID,
		GatewayOrderID:    e.ID,
		ExternalReference: e.ExternalReference,
		Status:            status,
		StatusDetail:      detail,
		TotalAmount:       e.TotalAmount,
		Currency:          e.Currency,
		Payer:             e.Payer,
		Lines:             e.Items,
		Metadata:          e.Metadata,
		OccurredAt:        latest(e.LastUpdatedDate, e.CreatedDate),
	}, true
}

// CreateOrderRequest is the phase-1 payload sent to the gateway.
type CreateOrderRequest struct {
	Type              string          `json:"type"`
	ExternalReference string          `json:"external_reference"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Currency          string          `json:"currency"`
	Payer             Payer           `json:"payer"`
	Items             []LineItem      `json:"items"`
}

// CreateOrderResponse is the gateway's phase-1 answer.
type CreateOrderResponse struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
}

// PaymentMethodType is the payload classification of a card.
type PaymentMethodType string

const (
	MethodCreditCard PaymentMethodType = "credit_card"
	MethodDebitCard  PaymentMethodType = "debit_card"
)

// CreatePaymentRequest is the phase-2 payload sent to the gateway.
type CreatePaymentRequest struct {
	OrderID           string            `json:"order_id"`
	Token             string            `json:"token"`
	Installments      int               `json:"installments"`
	PaymentMethodID   string            `json:"payment_method_id"`
	PaymentMethodType PaymentMethodType `json:"payment_type_id"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	Payer             Payer             `json:"payer"`
}

// PaymentResult is the provisional outcome of phase 2.
type PaymentResult struct {
	PaymentID      string      `json:"payment_id"`
	Status         OrderStatus `json:"status"`
	StatusDetail   string      `json:"status_detail"`
	IdempotencyKey string      `json:"-"`
}

// CreatePaymentResponse is the gateway's phase-2 answer.
type CreatePaymentResponse struct {
	ID                string          `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
}

func (r *CreatePaymentResponse) UnmarshalJSON(b []byte) error {
	type plain CreatePaymentResponse
	aux := struct {
		*plain
		ID ResourceID `json:"id"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.ID = string(aux.ID)
	return nil
}

// PaymentMethod is one entry of the gateway's method catalog.
type PaymentMethod struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PaymentTypeID string `json:"payment_type_id"`
	Status        string `json:"status"`
	Thumbnail     string `json:"secure_thumbnail,omitempty"`
}

// PayerCost is one installment option.
type PayerCost struct {
	Installments      int             `json:"installments"`
	InstallmentRate   decimal.Decimal `json:"installment_rate"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	RecommendedText   string          `json:"recommended_message,omitempty"`
}

// InstallmentOption groups payer costs for one method and issuer.
type InstallmentOption struct {
	PaymentMethodID string      `json:"payment_method_id"`
	PaymentTypeID   string      `json:"payment_type_id"`
	Issuer          CardIssuer  `json:"issuer"`
	PayerCosts      []PayerCost `json:"payer_costs"`
}

// CardIssuer is a bank that issues cards for a payment method.
type CardIssuer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InstallmentsQuery filters the installments lookup.
type InstallmentsQuery struct {
	BIN             string
	Amount          decimal.Decimal
	Currency        string
	PaymentMethodID string
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
