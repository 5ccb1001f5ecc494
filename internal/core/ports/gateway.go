package ports

import (
	"context"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
)

// GatewayPort defines the behavior of the external payment gateway.
type GatewayPort interface {
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest, idempotencyKey string) (*domain.CreateOrderResponse, error)
	CreatePayment(ctx context.Context, req domain.CreatePaymentRequest, idempotencyKey string) (*domain.CreatePaymentResponse, error)
	GetPayment(ctx context.Context, paymentID string) (*domain.PaymentEvent, error)
	GetOrder(ctx context.Context, orderID string) (*domain.OrderEvent, error)

	ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)
	GetInstallments(ctx context.Context, q domain.InstallmentsQuery) ([]domain.InstallmentOption, error)
	GetCardIssuers(ctx context.Context, bin, paymentMethodID string) ([]domain.CardIssuer, error)
}
