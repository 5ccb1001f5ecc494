// Package gateway talks to the external payment gateway over HTTP.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/DanielPopoola/storefront-checkout/internal/config"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
)

const idempotencyHeader = "X-Idempotency-Key"

type HTTPGatewayClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewGatewayClient(cfg config.GatewayConfig) ports.GatewayPort {
	return &HTTPGatewayClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *HTTPGatewayClient) CreateOrder(ctx context.Context, req domain.CreateOrderRequest, idempotencyKey string) (*domain.CreateOrderResponse, error) {
	return sendRequest[domain.CreateOrderResponse](c, ctx, http.MethodPost, "/orders", nil, req, idempotencyKey)
}

func (c *HTTPGatewayClient) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest, idempotencyKey string) (*domain.CreatePaymentResponse, error) {
	return sendRequest[domain.CreatePaymentResponse](c, ctx, http.MethodPost, "/payments", nil, req, idempotencyKey)
}

func (c *HTTPGatewayClient) GetPayment(ctx context.Context, paymentID string) (*domain.PaymentEvent, error) {
	return sendRequest[domain.PaymentEvent](c, ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, nil, "")
}

func (c *HTTPGatewayClient) GetOrder(ctx context.Context, orderID string) (*domain.OrderEvent, error) {
	return sendRequest[domain.OrderEvent](c, ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, nil, "")
}

func (c *HTTPGatewayClient) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	resp, err := sendRequest[[]domain.PaymentMethod](c, ctx, http.MethodGet, "/payment_methods", nil, nil, "")
	if err != nil {
		return nil, err
	}
	return *resp, nil
}

func (c *HTTPGatewayClient) GetInstallments(ctx context.Context, q domain.InstallmentsQuery) ([]domain.InstallmentOption, error) {
	params := url.Values{}
	params.Set("bin", q.BIN)
	params.Set("amount", q.Amount.String())
	if q.Currency != "" {
		params.Set("currency_id", q.Currency)
	}
	if q.PaymentMethodID != "" {
		params.Set("payment_method_id", NormalizePaymentMethod(q.PaymentMethodID))
	}

	resp, err := sendRequest[[]domain.InstallmentOption](c, ctx, http.MethodGet, "/payment_methods/installments", params, nil, "")
	if err != nil {
		return nil, err
	}
	return *resp, nil
}

func (c *HTTPGatewayClient) GetCardIssuers(ctx context.Context, bin, paymentMethodID string) ([]domain.CardIssuer, error) {
	params := url.Values{}
	params.Set("bin", bin)
	params.Set("payment_method_id", NormalizePaymentMethod(paymentMethodID))

	resp, err := sendRequest[[]domain.CardIssuer](c, ctx, http.MethodGet, "/payment_methods/card_issuers", params, nil, "")
	if err != nil {
		return nil, err
	}
	return *resp, nil
}

// sendRequest is a generic helper for JSON calls to the gateway API. A
// non-empty idempotencyKey is sent on the idempotency header.
func sendRequest[Resp any](c *HTTPGatewayClient, ctx context.Context, method, path string, query url.Values, body any, idempotencyKey string) (*Resp, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		httpReq.Header.Set(idempotencyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, parseError(resp.StatusCode, errBody)
	}

	var gatewayResp Resp
	if err := json.NewDecoder(resp.Body).Decode(&gatewayResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &gatewayResp, nil
}
