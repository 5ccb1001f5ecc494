package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DanielPopoola/storefront-checkout/internal/adapters/gateway"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
)

const (
	EventPayment       = "payment"
	EventOrder         = "order"
	EventMerchantOrder = "topic_merchant_order_wh"
)

// inertEvents are delivered by the gateway but carry nothing to reconcile.
var inertEvents = map[string]bool{
	"subscription_preapproval":        true,
	"subscription_preapproval_plan":   true,
	"subscription_authorized_payment": true,
	"invoice":                         true,
	"chargebacks":                     true,
	"topic_chargebacks_wh":            true,
	"point_integration_wh":            true,
	"topic_instore_integration_wh":    true,
}

// Dispatcher routes verified webhook events to the reconciler.
type Dispatcher struct {
	gateway       ports.GatewayPort
	reconciler    *Reconciler
	notifications *NotificationTrigger
	logger        *slog.Logger
}

func NewDispatcher(gw ports.GatewayPort, reconciler *Reconciler, notifications *NotificationTrigger, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		gateway:       gw,
		reconciler:    reconciler,
		notifications: notifications,
		logger:        logger,
	}
}

// Dispatch handles one event. handled is true when the event was reconciled.
// Unknown and inert types are acknowledged without error. Returned errors are
// transient (retry) when domain.IsTransient reports so, permanent otherwise.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType, dataID string) (bool, error) {
	logger := d.logger.With("type", eventType, "data_id", dataID)

	var (
		update domain.PaymentUpdate
		err    error
	)
	switch {
	case eventType == EventPayment:
		update, err = d.paymentUpdate(ctx, dataID)
	case eventType == EventOrder || eventType == EventMerchantOrder:
		var ok bool
		update, ok, err = d.orderUpdate(ctx, dataID)
		if err == nil && !ok {
			logger.Info("order has no payment yet, nothing to reconcile")
			return false, nil
		}
	case inertEvents[eventType]:
		logger.Info("received, not actionable here")
		return false, nil
	default:
		logger.Warn("unknown webhook type acknowledged")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return d.reconcile(ctx, update)
}

// Refresh re-fetches a payment the local order still shows as open and
// reconciles it. It is the sweeper's path for notifications the gateway
// never delivered.
func (d *Dispatcher) Refresh(ctx context.Context, paymentID string) (bool, error) {
	update, err := d.paymentUpdate(ctx, paymentID)
	if err != nil {
		return false, err
	}
	update.Source = domain.SourceSweeper
	return d.reconcile(ctx, update)
}

func (d *Dispatcher) reconcile(ctx context.Context, update domain.PaymentUpdate) (bool, error) {
	result, err := d.reconciler.Reconcile(ctx, update)
	if err != nil {
		return false, err
	}

	if result.NewlyApproved() {
		d.notifications.PaymentApproved(result.Order)
	}
	return true, nil
}

func (d *Dispatcher) paymentUpdate(ctx context.Context, id string) (domain.PaymentUpdate, error) {
	payment, err := d.gateway.GetPayment(ctx, id)
	if err != nil {
		return domain.PaymentUpdate{}, fetchError("payment", id, err)
	}
	if payment.ID == "" {
		payment.ID = id
	}
	return payment.ToUpdate(), nil
}

func (d *Dispatcher) orderUpdate(ctx context.Context, id string) (domain.PaymentUpdate, bool, error) {
	order, err := d.gateway.GetOrder(ctx, id)
	if err != nil {
		return domain.PaymentUpdate{}, false, fetchError("order", id, err)
	}
	if order.ID == "" {
		order.ID = id
	}
	update, ok := order.ToUpdate()
	return update, ok, nil
}

// fetchError classifies a detail-fetch failure: retryable gateway and
// transport failures are transient, the rest permanent.
func fetchError(resource, id string, err error) error {
	wrapped := fmt.Errorf("fetch %s %s: %w", resource, id, err)

	var gwErr *gateway.GatewayError
	if errors.As(err, &gwErr) && gwErr.IsNotFound() {
		return &domain.DomainError{Code: domain.ErrCodeResourceNotFound, Message: resource + " not found at gateway", Err: wrapped}
	}
	if gateway.IsRetryable(err) || errors.Is(err, context.Canceled) {
		return domain.NewTransientFailure("", wrapped)
	}
	return wrapped
}
