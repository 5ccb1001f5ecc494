package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/config"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
)

// RetryGatewayClient retries transient failures of the read-only calls.
// Mutating calls are passed through once: the caller owns their retry and
// reuses the idempotency key of the attempt.
type RetryGatewayClient struct {
	inner      ports.GatewayPort
	baseDelay  time.Duration
	maxRetries int
}

func NewRetryGatewayClient(inner ports.GatewayPort, cfg config.RetryConfig) ports.GatewayPort {
	maxRetries := int(cfg.MaxRetries)
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetryGatewayClient{
		inner:      inner,
		baseDelay:  cfg.BaseDelay,
		maxRetries: maxRetries,
	}
}

func (r *RetryGatewayClient) CreateOrder(ctx context.Context, req domain.CreateOrderRequest, idempotencyKey string) (*domain.CreateOrderResponse, error) {
	return r.inner.CreateOrder(ctx, req, idempotencyKey)
}

func (r *RetryGatewayClient) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest, idempotencyKey string) (*domain.CreatePaymentResponse, error) {
	return r.inner.CreatePayment(ctx, req, idempotencyKey)
}

// GetPayment with retry logic
func (r *RetryGatewayClient) GetPayment(ctx context.Context, paymentID string) (*domain.PaymentEvent, error) {
	return retry(r, ctx, func(ctx context.Context) (*domain.PaymentEvent, error) {
		return r.inner.GetPayment(ctx, paymentID)
	})
}

// GetOrder with retry logic
func (r *RetryGatewayClient) GetOrder(ctx context.Context, orderID string) (*domain.OrderEvent, error) {
	return retry(r, ctx, func(ctx context.Context) (*domain.OrderEvent, error) {
		return r.inner.GetOrder(ctx, orderID)
	})
}

func (r *RetryGatewayClient) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	resp, err := retry(r, ctx, func(ctx context.Context) (*[]domain.PaymentMethod, error) {
		methods, err := r.inner.ListPaymentMethods(ctx)
		return &methods, err
	})
	if err != nil {
		return nil, err
	}
	return *resp, nil
}

func (r *RetryGatewayClient) GetInstallments(ctx context.Context, q domain.InstallmentsQuery) ([]domain.InstallmentOption, error) {
	resp, err := retry(r, ctx, func(ctx context.Context) (*[]domain.InstallmentOption, error) {
		opts, err := r.inner.GetInstallments(ctx, q)
		return &opts, err
	})
	if err != nil {
		return nil, err
	}
	return *resp, nil
}

func (r *RetryGatewayClient) GetCardIssuers(ctx context.Context, bin, paymentMethodID string) ([]domain.CardIssuer, error) {
	resp, err := retry(r, ctx, func(ctx context.Context) (*[]domain.CardIssuer, error) {
		issuers, err := r.inner.GetCardIssuers(ctx, bin, paymentMethodID)
		return &issuers, err
	})
	if err != nil {
		return nil, err
	}
	return *resp, nil
}

// Generic retry helper
func retry[T any](r *RetryGatewayClient, ctx context.Context, operation func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return nil, err
		}

		if attempt < r.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ctx.Err(), lastErr)
			case <-time.After(r.backoff(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

// IsRetryable reports whether err is worth another attempt with the same
// idempotency key. Gateway 4xx answers are final.
func IsRetryable(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.IsRetryable()
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, ErrMalformedResponse) {
		return false
	}

	// Transport failures and deadline exceeded.
	return true
}

// Backoff calculation with exponential delay and jitter
func (r *RetryGatewayClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)

	jitter := time.Duration(rand.Intn(100)) * time.Millisecond

	return base + jitter
}
