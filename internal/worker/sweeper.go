package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/config"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
)

// PaymentRefresher re-fetches a payment from the gateway and reconciles it.
type PaymentRefresher interface {
	Refresh(ctx context.Context, paymentID string) (bool, error)
}

// Sweeper re-checks orders whose payment is still open after the gateway
// should have notified us.
type Sweeper struct {
	repo       ports.OrderRepository
	refresher  PaymentRefresher
	interval   time.Duration
	batchSize  int
	staleAfter time.Duration
	logger     *slog.Logger
}

func NewSweeper(
	repo ports.OrderRepository,
	refresher PaymentRefresher,
	cfg config.WorkerConfig,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		repo:       repo,
		refresher:  refresher,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		staleAfter: cfg.StaleAfter,
		logger:     logger,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("starting pending-order sweeper",
		"interval", s.interval,
		"batch_size", s.batchSize,
		"stale_after", s.staleAfter,
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping pending-order sweeper")
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

// RunOnce executes a single sweep and returns how many orders were refreshed.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	return s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) int {
	stale, err := s.repo.FindStaleOrders(ctx, s.staleAfter, s.batchSize)
	if err != nil {
		s.logger.Error("failed to fetch stale orders", "error", err)
		return 0
	}

	if len(stale) == 0 {
		return 0
	}

	s.logger.Info("refreshing stale orders", "count", len(stale))

	refreshed := 0
	for _, order := range stale {
		if ctx.Err() != nil {
			return refreshed
		}
		if order.PaymentID == nil {
			continue
		}
		if s.refresh(ctx, order) {
			refreshed++
		}
	}
	return refreshed
}

func (s *Sweeper) refresh(ctx context.Context, order *domain.Order) bool {
	logger := s.logger.With("order_id", order.ID, "payment_id", *order.PaymentID, "status", order.Status)

	if _, err := s.refresher.Refresh(ctx, *order.PaymentID); err != nil {
		if domain.IsTransient(err) {
			logger.Warn("refresh failed, will retry next sweep", "error", err)
		} else {
			logger.Error("refresh failed", "error", err)
		}
		return false
	}

	logger.Debug("order refreshed")
	return true
}
