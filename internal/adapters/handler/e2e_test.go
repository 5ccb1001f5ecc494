package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/adapters/webhook"
	"github.com/DanielPopoola/storefront-checkout/internal/config"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCheckoutToApprovedWebhook(t *testing.T) {
	logger := discardLogger()
	repo := service.NewMockOrderRepository()
	gw := service.NewMockGateway()
	notifier := &service.MockNotifier{}
	notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	trigger := service.NewNotificationTrigger(notifier, "ops@example.com", time.Second, logger)
	reconciler := service.NewReconciler(repo, logger)
	prices := service.NewPriceList(&service.MockPriceSource{Prices: []domain.SizePrice{
		{Size: "A4", PriceUSD: decimal.RequireFromString("33.33"), Enabled: true},
	}}, time.Minute, logger)
	converter := service.NewConverter(service.NewRateCache(&service.MockRateSource{}, service.NewMockRateStore(), time.Minute, logger), logger)
	checkout := service.NewCheckoutService(repo, gw, reconciler, trigger, prices, converter, "https://shop.example.com"+WebhookPath, logger)
	dispatcher := service.NewDispatcher(gw, reconciler, trigger, logger)

	schema, err := LoadNotificationSchema(context.Background())
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewCheckoutHandler(checkout, logger).RegisterRoutes(mux)
	NewWebhookHandler(
		webhook.NewVerifier(testSecret, logger),
		dispatcher,
		schema,
		config.WebhookConfig{MaxBodyBytes: 1 << 20, ProcessTimeout: 5 * time.Second, RetryTransient: true},
		logger,
	).RegisterRoutes(mux)

	// Phase 1
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/checkout/orders", strings.NewReader(orderBody)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	order := decodeResponse(t, rr).Data.(map[string]any)
	assert.Equal(t, "G1", order["gateway_order_id"])
	assert.Equal(t, "ARS", order["currency"])

	// Phase 2
	payment := `{"token":"tok-1","installments":1,"payment_method_id":"visa",
		"payer":{"first_name":"Lucía","last_name":"Pérez","email":"lucia@example.com"}}`
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/checkout/orders/G1/payments", strings.NewReader(payment)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	result := decodeResponse(t, rr).Data.(map[string]any)
	assert.Equal(t, "P1", result["payment_id"])
	assert.Equal(t, "pending", result["status"])

	// Webhook, delivered twice
	for i := 0; i < 2; i++ {
		rr = httptest.NewRecorder()
		mux.ServeHTTP(rr, signedRequest(WebhookPath, `{"type":"payment","action":"payment.updated","data":{"id":"P1"}}`, "P1", time.Now()))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}
	trigger.Wait()

	stored, err := repo.FindByPaymentID(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, stored.Status)
	assert.Equal(t, "cart-1", stored.ExternalReference)
	assert.True(t, stored.TotalAmount.Equal(decimal.NewFromInt(66660)))
	assert.Equal(t, 1, repo.OrderCount())

	history, err := repo.ListHistory(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3, "provisional pending plus two deliveries")

	// One approval: one operator email and one customer email.
	notifier.AssertNumberOfCalls(t, "Send", 2)
	notifier.AssertCalled(t, "Send", mock.Anything, domain.RecipientOperator, "ops@example.com", mock.Anything)
	notifier.AssertCalled(t, "Send", mock.Anything, domain.RecipientCustomer, "lucia@example.com", mock.Anything)
}
