package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
	"golang.org/x/sync/errgroup"
)

// NotificationTrigger sends the approval emails in the background. Failures
// are logged and never reach the caller.
type NotificationTrigger struct {
	notifier      ports.Notifier
	operatorEmail string
	timeout       time.Duration
	logger        *slog.Logger
	wg            sync.WaitGroup
}

func NewNotificationTrigger(notifier ports.Notifier, operatorEmail string, timeout time.Duration, logger *slog.Logger) *NotificationTrigger {
	return &NotificationTrigger{
		notifier:      notifier,
		operatorEmail: operatorEmail,
		timeout:       timeout,
		logger:        logger,
	}
}

// PaymentApproved schedules the operator and customer emails for order.
// Callers invoke it only when the order just became approved.
func (t *NotificationTrigger) PaymentApproved(order *domain.Order) {
	data := domain.NewPaymentNotificationData(order)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		t.send(ctx, data)
	}()
}

func (t *NotificationTrigger) send(ctx context.Context, data domain.PaymentNotificationData) {
	var g errgroup.Group

	deliver := func(recipient domain.Recipient, to string) {
		if to == "" {
			t.logger.Warn("notification skipped, no address", "recipient", recipient, "order_id", data.OrderID)
			return
		}
		g.Go(func() error {
			if err := t.notifier.Send(ctx, recipient, to, data); err != nil {
				t.logger.Error("notification failed",
					"recipient", recipient,
					"order_id", data.OrderID,
					"payment_id", data.PaymentID,
					"error", err,
				)
				return err
			}
			t.logger.Info("notification sent", "recipient", recipient, "order_id", data.OrderID, "payment_id", data.PaymentID)
			return nil
		})
	}

	deliver(domain.RecipientOperator, t.operatorEmail)
	deliver(domain.RecipientCustomer, data.Payer.Email)

	_ = g.Wait()
}

// Wait blocks until scheduled notifications finish.
func (t *NotificationTrigger) Wait() {
	t.wg.Wait()
}
