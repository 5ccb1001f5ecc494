package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
	"github.com/google/uuid"
)

// ReconcileResult describes what one reconcile call did.
type ReconcileResult struct {
	Order          *domain.Order
	PreviousStatus domain.OrderStatus
	Inserted       bool
}

// NewlyApproved reports whether this call moved the order into approved.
func (r *ReconcileResult) NewlyApproved() bool {
	return r.Order.Status == domain.StatusApproved && r.PreviousStatus != domain.StatusApproved
}

// Reconciler is the only writer of orders once a payment id is known.
type Reconciler struct {
	repo   ports.OrderRepository
	logger *slog.Logger
}

func NewReconciler(repo ports.OrderRepository, logger *slog.Logger) *Reconciler {
	return &Reconciler{repo: repo, logger: logger}
}

const reconcileAttempts = 2

// Reconcile upserts the order named by u.PaymentID and appends one history
// entry per call. Calls for the same payment id are serialized by the
// repository; a lost race on a unique constraint is retried once.
func (r *Reconciler) Reconcile(ctx context.Context, u domain.PaymentUpdate) (*ReconcileResult, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if u.OccurredAt.IsZero() {
		u.OccurredAt = time.Now().UTC()
	}

	var (
		result *ReconcileResult
		err    error
	)
	for attempt := 0; attempt < reconcileAttempts; attempt++ {
		result, err = r.reconcileOnce(ctx, u)
		if !errors.Is(err, domain.ErrDuplicateOrder) {
			break
		}
		r.logger.Warn("reconcile lost a race, retrying", "payment_id", u.PaymentID, "attempt", attempt+1)
	}
	if err != nil {
		return nil, domain.NewTransientFailure("", fmt.Errorf("reconcile payment %s: %w", u.PaymentID, err))
	}

	r.logger.Info("order reconciled",
		"order_id", result.Order.ID,
		"payment_id", u.PaymentID,
		"source", u.Source,
		"previous_status", result.PreviousStatus,
		"observed_status", u.Status,
		"status", result.Order.Status,
		"inserted", result.Inserted,
	)
	return result, nil
}

func (r *Reconciler) reconcileOnce(ctx context.Context, u domain.PaymentUpdate) (*ReconcileResult, error) {
	var result *ReconcileResult

	err := r.repo.WithTx(ctx, func(tx ports.OrderRepository) error {
		if err := tx.LockPayment(ctx, u.PaymentID); err != nil {
			return err
		}

		order, inserted, attach, err := r.locate(ctx, tx, u)
		if err != nil {
			return err
		}

		res := &ReconcileResult{Order: order, PreviousStatus: order.Status, Inserted: inserted}
		if attach {
			if order.PaymentID != nil && *order.PaymentID != u.PaymentID {
				r.reopen(order, u)
			}
			order.Apply(u)
			if err := tx.UpsertOrder(ctx, order); err != nil {
				return err
			}
		}
		if err := tx.AppendHistory(ctx, domain.NewStatusHistoryEntry(order.ID, u)); err != nil {
			return err
		}

		result = res
		return nil
	})
	return result, err
}

// locate finds the order for u by payment id, then by external reference,
// then by gateway order id, and builds a new one when nothing matches.
// attach is false when u must only be recorded in the history.
func (r *Reconciler) locate(ctx context.Context, tx ports.OrderRepository, u domain.PaymentUpdate) (order *domain.Order, inserted, attach bool, err error) {
	order, err = tx.FindByPaymentIDForUpdate(ctx, u.PaymentID)
	if err == nil {
		return order, false, true, nil
	}
	if !errors.Is(err, domain.ErrOrderNotFound) {
		return nil, false, false, err
	}

	if u.ExternalReference != "" {
		order, err = tx.FindByExternalReferenceForUpdate(ctx, u.ExternalReference)
		switch {
		case err == nil:
			return order, false, r.claim(order, u), nil
		case !errors.Is(err, domain.ErrOrderNotFound):
			return nil, false, false, err
		}
	}

	if u.GatewayOrderID != "" {
		order, err = tx.FindByGatewayOrderIDForUpdate(ctx, u.GatewayOrderID)
		switch {
		case err == nil:
			return order, false, r.claim(order, u), nil
		case !errors.Is(err, domain.ErrOrderNotFound):
			return nil, false, false, err
		}
	}

	created := u.OccurredAt
	return &domain.Order{
		ID:                uuid.New(),
		ExternalReference: u.ExternalReference,
		CreatedAt:         created,
		UpdatedAt:         created,
	}, true, true, nil
}

// claim decides whether a located order follows the payment in u. An order
// whose earlier payment failed or is still open follows the new attempt; an
// approved or refunded order keeps its payment and u is history only.
func (r *Reconciler) claim(order *domain.Order, u domain.PaymentUpdate) bool {
	if order.PaymentID == nil || *order.PaymentID == u.PaymentID {
		return true
	}
	if order.Status == domain.StatusApproved || order.Status == domain.StatusRefunded {
		r.logger.Warn("payment for settled order kept as history only",
			"order_id", order.ID,
			"payment_id", *order.PaymentID,
			"new_payment_id", u.PaymentID,
		)
		return false
	}
	return true
}

// reopen detaches a rejected, cancelled or still-open payment so the order
// tracks the buyer's next attempt. The earlier outcome stays in the history.
// Terminal statuses of the same payment are never reverted; see Order.Apply.
func (r *Reconciler) reopen(order *domain.Order, u domain.PaymentUpdate) {
	r.logger.Info("order moved to new payment attempt",
		"order_id", order.ID,
		"previous_payment_id", *order.PaymentID,
		"previous_status", order.Status,
		"payment_id", u.PaymentID,
	)
	order.PaymentID = nil
	order.Status = domain.StatusPending
	order.StatusDetail = ""
}
