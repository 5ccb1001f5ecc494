package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/service"
	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"
)

const maxCheckoutBody = 64 << 10

type CreateOrderRequest struct {
	ExternalReference string            `json:"external_reference" validate:"required,max=64" example:"cart-7f3a"`
	Lines             []domain.CartLine `json:"lines" validate:"required,min=1,dive"`
	Payer             domain.Payer      `json:"payer"`
	Currency          string            `json:"currency" validate:"omitempty,len=3" example:"ARS"`
	Country           string            `json:"country" validate:"omitempty,len=2" example:"AR"`
}

type OrderResponse struct {
	OrderID           string            `json:"order_id"`
	GatewayOrderID    string            `json:"gateway_order_id"`
	ExternalReference string            `json:"external_reference"`
	Status            string            `json:"status"`
	Currency          string            `json:"currency"`
	TotalAmount       decimal.Decimal   `json:"total_amount"`
	Items             []domain.LineItem `json:"items"`
	Reused            bool              `json:"reused"`
	CreatedAt         time.Time         `json:"created_at"`
}

type CreatePaymentRequest struct {
	Token           string       `json:"token" validate:"required"`
	Installments    int          `json:"installments" validate:"omitempty,min=1,max=48"`
	PaymentMethodID string       `json:"payment_method_id" example:"visa"`
	Payer           domain.Payer `json:"payer"`
}

type PaymentResponse struct {
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail"`
	// FailureCode and Message are set when the gateway rejected the payment.
	FailureCode    string `json:"failure_code,omitempty"`
	Message        string `json:"message,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

// HandleCreateOrder runs phase 1 of checkout
// @Summary      Create an order
// @Description  Prices the cart, converts it to the local currency and registers the order with the gateway. Repeating the call with the same external_reference returns the same gateway order.
// @Tags         checkout
// @Accept       json
// @Produce      json
// @Param        request  body      CreateOrderRequest  true  "Cart and payer"
// @Success      201      {object}  APIResponse         "Order created"
// @Success      200      {object}  APIResponse         "Existing order returned"
// @Failure      400      {object}  APIResponse         "Invalid cart or payer"
// @Failure      422      {object}  APIResponse         "Rejected by the gateway"
// @Failure      503      {object}  APIResponse         "Gateway unavailable, retry"
// @Router       /checkout/orders [post]
func (h *CheckoutHandler) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := h.decode(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	result, err := h.checkout.PlaceOrder(r.Context(), service.PlaceOrderInput{
		ExternalReference: req.ExternalReference,
		Lines:             req.Lines,
		Payer:             req.Payer,
		Currency:          req.Currency,
		Country:           req.Country,
	})
	if err != nil {
		h.logger.Warn("create order failed", "external_reference", req.ExternalReference, "error", err)
		respondWithError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	respondWithJSON(w, status, OrderResponse{
		OrderID:           result.Order.ID.String(),
		GatewayOrderID:    result.GatewayOrderID,
		ExternalReference: result.Order.ExternalReference,
		Status:            string(result.Order.Status),
		Currency:          result.Order.Currency,
		TotalAmount:       result.Order.TotalAmount,
		Items:             result.Order.Items,
		Reused:            result.Reused,
		CreatedAt:         result.Order.CreatedAt,
	})
}

// HandleCreatePayment runs phase 2 of checkout
// @Summary      Pay an order
// @Description  Charges a tokenized card against a gateway order. The returned status is provisional; the webhook carries the final one.
// @Tags         checkout
// @Accept       json
// @Produce      json
// @Param        gatewayOrderId     path      string                true   "Gateway order ID from phase 1"
// @Param        X-Idempotency-Key  header    string                false  "Key from a previous transient failure, to retry the same attempt"
// @Param        request            body      CreatePaymentRequest  true   "Card token and payer"
// @Success      201                {object}  APIResponse           "Payment submitted"
// @Failure      400                {object}  APIResponse           "Invalid input"
// @Failure      422                {object}  APIResponse           "Rejected by the gateway"
// @Failure      503                {object}  APIResponse           "Gateway unavailable, retry with the returned idempotency key"
// @Router       /checkout/orders/{gatewayOrderId}/payments [post]
func (h *CheckoutHandler) HandleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := h.decode(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	gatewayOrderID := r.PathValue("gatewayOrderId")
	outcome, err := h.checkout.CreatePayment(r.Context(), service.PaymentInput{
		GatewayOrderID:  gatewayOrderID,
		Token:           req.Token,
		Installments:    req.Installments,
		PaymentMethodID: req.PaymentMethodID,
		Payer:           req.Payer,
		IdempotencyKey:  r.Header.Get("X-Idempotency-Key"),
	})
	if err != nil {
		h.logger.Warn("create payment failed", "gateway_order_id", gatewayOrderID, "error", err)
		respondWithError(w, r, err)
		return
	}

	resp := PaymentResponse{
		PaymentID:      outcome.PaymentID,
		Status:         string(outcome.Status),
		StatusDetail:   outcome.StatusDetail,
		IdempotencyKey: outcome.IdempotencyKey,
	}
	if outcome.Failure != "" {
		resp.FailureCode = string(outcome.Failure)
		resp.Message = outcome.Failure.Message(requestLanguage(r))
	}
	respondWithJSON(w, http.StatusCreated, resp)
}

// decode reads a bounded JSON body into dst and runs its validate tags.
func (h *CheckoutHandler) decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCheckoutBody+1))
	if err != nil {
		return domain.NewValidationFailure(&domain.ValidationError{Field: "body", Reason: "unreadable"})
	}
	if len(body) > maxCheckoutBody {
		return domain.NewValidationFailure(&domain.ValidationError{Field: "body", Reason: "too large"})
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return domain.NewValidationFailure(&domain.ValidationError{Field: "body", Reason: "invalid JSON"})
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return domain.NewValidationFailure(&domain.ValidationError{
				Field:  jsonFieldName(verrs[0].Namespace()),
				Reason: "failed " + verrs[0].Tag(),
			})
		}
		return domain.NewValidationFailure(err)
	}
	return nil
}
