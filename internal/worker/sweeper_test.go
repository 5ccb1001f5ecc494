package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/config"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRefresher struct {
	mu        sync.Mutex
	calls     []string
	refreshFn func(ctx context.Context, paymentID string) (bool, error)
}

func (m *mockRefresher) Refresh(ctx context.Context, paymentID string) (bool, error) {
	m.mu.Lock()
	m.calls = append(m.calls, paymentID)
	m.mu.Unlock()
	if m.refreshFn != nil {
		return m.refreshFn(ctx, paymentID)
	}
	return true, nil
}

func (m *mockRefresher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var workerCfg = config.WorkerConfig{Interval: 10 * time.Millisecond, BatchSize: 10, StaleAfter: 10 * time.Minute}

func seedOrder(t *testing.T, repo *service.MockOrderRepository, paymentID string, status domain.OrderStatus, age time.Duration) {
	t.Helper()
	o := &domain.Order{
		ID:          uuid.New(),
		Status:      status,
		Currency:    "ARS",
		TotalAmount: decimal.NewFromInt(3000),
		Payer:       domain.Payer{FirstName: "Lucía", LastName: "Pérez", Email: "lucia@example.com"},
		CreatedAt:   time.Now().Add(-age),
		UpdatedAt:   time.Now().Add(-age),
	}
	if paymentID != "" {
		o.PaymentID = &paymentID
	}
	require.NoError(t, repo.UpsertOrder(context.Background(), o))
}

func TestSweeper_RefreshesOnlyStaleOpenOrders(t *testing.T) {
	repo := service.NewMockOrderRepository()
	seedOrder(t, repo, "P-stale", domain.StatusPending, time.Hour)
	seedOrder(t, repo, "P-inprocess", domain.StatusInProcess, 30*time.Minute)
	seedOrder(t, repo, "P-fresh", domain.StatusPending, time.Minute)
	seedOrder(t, repo, "P-done", domain.StatusApproved, time.Hour)
	seedOrder(t, repo, "", domain.StatusPending, time.Hour)

	refresher := &mockRefresher{}
	sweeper := NewSweeper(repo, refresher, workerCfg, testLogger())

	refreshed := sweeper.RunOnce(context.Background())

	assert.Equal(t, 2, refreshed)
	assert.Equal(t, []string{"P-stale", "P-inprocess"}, refresher.Calls())
}

func TestSweeper_FailuresDoNotStopTheBatch(t *testing.T) {
	repo := service.NewMockOrderRepository()
	seedOrder(t, repo, "P-1", domain.StatusPending, 2*time.Hour)
	seedOrder(t, repo, "P-2", domain.StatusPending, time.Hour)

	refresher := &mockRefresher{refreshFn: func(ctx context.Context, paymentID string) (bool, error) {
		if paymentID == "P-1" {
			return false, domain.NewTransientFailure("", errors.New("gateway timeout"))
		}
		return true, nil
	}}
	sweeper := NewSweeper(repo, refresher, workerCfg, testLogger())

	assert.Equal(t, 1, sweeper.RunOnce(context.Background()))
	assert.Len(t, refresher.Calls(), 2)
}

func TestSweeper_RepositoryError(t *testing.T) {
	repo := service.NewMockOrderRepository()
	repo.FindStaleOrdersFn = func(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Order, error) {
		return nil, errors.New("connection refused")
	}
	refresher := &mockRefresher{}
	sweeper := NewSweeper(repo, refresher, workerCfg, testLogger())

	assert.Equal(t, 0, sweeper.RunOnce(context.Background()))
	assert.Empty(t, refresher.Calls())
}

func TestSweeper_RecoversMissedApproval(t *testing.T) {
	logger := testLogger()
	repo := service.NewMockOrderRepository()
	seedOrder(t, repo, "P-missed", domain.StatusPending, time.Hour)

	gw := service.NewMockGateway()
	notifier := &service.MockNotifier{}
	notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	trigger := service.NewNotificationTrigger(notifier, "ops@example.com", time.Second, logger)
	dispatcher := service.NewDispatcher(gw, service.NewReconciler(repo, logger), trigger, logger)

	sweeper := NewSweeper(repo, dispatcher, workerCfg, logger)
	assert.Equal(t, 1, sweeper.RunOnce(context.Background()))
	trigger.Wait()

	order, err := repo.FindByPaymentID(context.Background(), "P-missed")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, order.Status)
	notifier.AssertNumberOfCalls(t, "Send", 2)

	// Approved orders are no longer stale candidates.
	assert.Equal(t, 0, sweeper.RunOnce(context.Background()))
}

func TestSweeper_StartStopsOnCancel(t *testing.T) {
	repo := service.NewMockOrderRepository()
	seedOrder(t, repo, "P-tick", domain.StatusPending, time.Hour)
	refresher := &mockRefresher{}
	sweeper := NewSweeper(repo, refresher, workerCfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(refresher.Calls()) > 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
