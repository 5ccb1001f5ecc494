package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/adapters/gateway"
	"github.com/DanielPopoola/storefront-checkout/internal/config"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.HandlerFunc) *gateway.HTTPGatewayClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return gateway.NewGatewayClient(config.GatewayConfig{
		BaseURL:     srv.URL + "/v1/",
		AccessToken: "TEST-token",
		Timeout:     2 * time.Second,
	}).(*gateway.HTTPGatewayClient)
}

func TestCreateOrder(t *testing.T) {
	t.Run("sends bearer token and idempotency key", func(t *testing.T) {
		var got domain.CreateOrderRequest
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/orders", r.URL.Path)
			assert.Equal(t, "Bearer TEST-token", r.Header.Get("Authorization"))
			assert.Equal(t, "create_order:ref-1:1", r.Header.Get("X-Idempotency-Key"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "G1", "status": "created"})
		})

		resp, err := client.CreateOrder(context.Background(), domain.CreateOrderRequest{
			ExternalReference: "ref-1",
			TotalAmount:       decimal.RequireFromString("100.00"),
			Currency:          "BRL",
		}, "create_order:ref-1:1")

		require.NoError(t, err)
		assert.Equal(t, "G1", resp.ID)
		assert.Equal(t, "ref-1", got.ExternalReference)
		assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(100)))
	})

	t.Run("decodes rejection with cause code", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"invalid card token","error":"bad_request","status":400,"cause":[{"code":2006,"description":"Card Token not found"}]}`))
		})

		_, err := client.CreateOrder(context.Background(), domain.CreateOrderRequest{}, "k")

		var gwErr *gateway.GatewayError
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
		assert.Equal(t, "2006", gwErr.ProviderCode())
		assert.False(t, gwErr.IsRetryable())
	})

	t.Run("5xx is retryable", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		})

		_, err := client.CreateOrder(context.Background(), domain.CreateOrderRequest{}, "k")

		assert.True(t, gateway.IsRetryable(err))
	})
}

func TestGetPayment(t *testing.T) {
	t.Run("decodes payment resource", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/payments/P1", r.URL.Path)
			assert.Empty(t, r.Header.Get("X-Idempotency-Key"))
			_, _ = w.Write([]byte(`{"id":"P1","status":"approved","status_detail":"accredited","transaction_amount":166.65,"currency_id":"BRL","external_reference":"ref-1"}`))
		})

		p, err := client.GetPayment(context.Background(), "P1")

		require.NoError(t, err)
		assert.Equal(t, "approved", p.Status)
		assert.True(t, p.TransactionAmount.Equal(decimal.RequireFromString("166.65")))
	})

	t.Run("numeric id", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":1234567890,"status":"approved","order_id":"G1","transaction_amount":1000,"currency_id":"ARS"}`))
		})

		p, err := client.GetPayment(context.Background(), "1234567890")

		require.NoError(t, err)
		assert.Equal(t, "1234567890", p.ID)
		assert.Equal(t, "G1", p.OrderID)
		u := p.ToUpdate()
		assert.Equal(t, "1234567890", u.PaymentID)
		assert.Equal(t, domain.StatusApproved, u.Status)
	})

	t.Run("not found", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Payment not found","error":"not_found","status":404}`))
		})

		_, err := client.GetPayment(context.Background(), "P404")

		var gwErr *gateway.GatewayError
		require.ErrorAs(t, err, &gwErr)
		assert.True(t, gwErr.IsNotFound())
		assert.Equal(t, "not_found", gwErr.ProviderCode())
	})

	t.Run("malformed body is not retryable", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":`))
		})

		_, err := client.GetPayment(context.Background(), "P1")

		assert.ErrorIs(t, err, gateway.ErrMalformedResponse)
		assert.False(t, gateway.IsRetryable(err))
	})
}

func TestCreatePayment_NumericID(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments", r.URL.Path)
		assert.Equal(t, "create_payment:G1:1", r.Header.Get("X-Idempotency-Key"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":98765432101,"status":"in_process","status_detail":"pending_contingency","transaction_amount":66660,"currency_id":"ARS"}`))
	})

	resp, err := client.CreatePayment(context.Background(), domain.CreatePaymentRequest{OrderID: "G1"}, "create_payment:G1:1")

	require.NoError(t, err)
	assert.Equal(t, "98765432101", resp.ID)
	assert.Equal(t, "in_process", resp.Status)
	assert.True(t, resp.TransactionAmount.Equal(decimal.NewFromInt(66660)))
}

func TestLookups(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/payment_methods":
			_, _ = w.Write([]byte(`[{"id":"visa","name":"Visa","payment_type_id":"credit_card","status":"active"}]`))
		case "/v1/payment_methods/installments":
			assert.Equal(t, "450995", r.URL.Query().Get("bin"))
			assert.Equal(t, "master", r.URL.Query().Get("payment_method_id"))
			_, _ = w.Write([]byte(`[{"payment_method_id":"master","payer_costs":[{"installments":3,"total_amount":300}]}]`))
		case "/v1/payment_methods/card_issuers":
			assert.Equal(t, "visa", r.URL.Query().Get("payment_method_id"))
			_, _ = w.Write([]byte(`[{"id":"310","name":"Banco X"}]`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	methods, err := client.ListPaymentMethods(ctx)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, "visa", methods[0].ID)

	opts, err := client.GetInstallments(ctx, domain.InstallmentsQuery{BIN: "450995", Amount: decimal.NewFromInt(300), PaymentMethodID: "debmaster"})
	require.NoError(t, err)
	require.Len(t, opts, 1)
	assert.Equal(t, 3, opts[0].PayerCosts[0].Installments)

	issuers, err := client.GetCardIssuers(ctx, "450995", "debvisa")
	require.NoError(t, err)
	assert.Equal(t, "Banco X", issuers[0].Name)
}

func TestTransportErrorIsRetryable(t *testing.T) {
	client := gateway.NewGatewayClient(config.GatewayConfig{
		BaseURL:     "http://127.0.0.1:1",
		AccessToken: "x",
		Timeout:     time.Second,
	})

	_, err := client.GetOrder(context.Background(), "G1")

	require.Error(t, err)
	assert.True(t, gateway.IsRetryable(err))
	assert.False(t, gateway.IsRetryable(context.Canceled))
	assert.False(t, gateway.IsRetryable(errors.Join(errors.New("x"), &gateway.GatewayError{StatusCode: 400})))
}
