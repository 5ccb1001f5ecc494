// Package handler exposes the checkout endpoints and the gateway webhook.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/DanielPopoola/storefront-checkout/internal/adapters/webhook"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/service"
	"github.com/go-playground/validator"
)

const WebhookPath = "/api/webhooks/payments"

type CheckoutService interface {
	PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (*service.OrderResult, error)
	CreatePayment(ctx context.Context, in service.PaymentInput) (*service.PaymentOutcome, error)
	PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)
	Installments(ctx context.Context, q domain.InstallmentsQuery) ([]domain.InstallmentOption, error)
	CardIssuers(ctx context.Context, bin, paymentMethodID string) ([]domain.CardIssuer, error)
}

type WebhookDispatcher interface {
	Dispatch(ctx context.Context, eventType, dataID string) (bool, error)
}

type SignatureVerifier interface {
	Verify(h http.Header, dataID string) webhook.Result
}

type CheckoutHandler struct {
	checkout CheckoutService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewCheckoutHandler(checkout CheckoutService, logger *slog.Logger) *CheckoutHandler {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &CheckoutHandler{
		checkout: checkout,
		validate: validate,
		logger:   logger,
	}
}

func (h *CheckoutHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /checkout/orders", h.HandleCreateOrder)
	mux.HandleFunc("POST /checkout/orders/{gatewayOrderId}/payments", h.HandleCreatePayment)
	mux.HandleFunc("GET /checkout/payment-methods", h.HandlePaymentMethods)
	mux.HandleFunc("GET /checkout/installments", h.HandleInstallments)
	mux.HandleFunc("GET /checkout/card-issuers", h.HandleCardIssuers)
}

func RegisterHealthRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", HandleHealth)
}

// HandleHealth reports process liveness
// @Summary      Liveness probe
// @Tags         health
// @Produce      json
// @Success      200  {object}  APIResponse
// @Router       /healthz [get]
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
