package ports

import (
	"context"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/google/uuid"
)

// OrderRepository defines the persistence of orders and their status history.
// Lookups return domain.ErrOrderNotFound when nothing matches.
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error)
	FindByPaymentIDForUpdate(ctx context.Context, paymentID string) (*domain.Order, error)
	FindByExternalReference(ctx context.Context, ref string) (*domain.Order, error)
	FindByExternalReferenceForUpdate(ctx context.Context, ref string) (*domain.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error)
	FindByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (*domain.Order, error)
	FindStaleOrders(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Order, error)

	// InsertPendingOrder stores order unless one with the same external
	// reference exists, in which case the existing row is returned.
	InsertPendingOrder(ctx context.Context, order *domain.Order) (*domain.Order, bool, error)
	// UpsertOrder inserts or fully updates the row identified by order.ID.
	// Unique violations on payment_id, gateway_order_id or external_reference are reported as
	// domain.ErrDuplicateOrder.
	UpsertOrder(ctx context.Context, order *domain.Order) error
	// LockPayment serializes writers for paymentID until the transaction ends.
	LockPayment(ctx context.Context, paymentID string) error

	AppendHistory(ctx context.Context, entry domain.StatusHistoryEntry) error
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]domain.StatusHistoryEntry, error)

	// WithTx executes a function within a database transaction.
	WithTx(ctx context.Context, fn func(OrderRepository) error) error
}
