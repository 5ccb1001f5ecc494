package postgres_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/adapters/postgres"
	"github.com/DanielPopoola/storefront-checkout/internal/adapters/postgres/testhelpers"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
	"github.com/DanielPopoola/storefront-checkout/internal/core/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type OrderRepositoryTestSuite struct {
	suite.Suite
	testDB *testhelpers.TestDatabase
	repo   ports.OrderRepository
	logger *slog.Logger
}

func TestOrderRepositorySuite(t *testing.T) {
	suite.Run(t, new(OrderRepositoryTestSuite))
}

func (suite *OrderRepositoryTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.repo = postgres.NewOrderRepository(suite.testDB.DB)
	suite.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (suite *OrderRepositoryTestSuite) TearDownSuite() {
	if suite.testDB != nil {
		suite.testDB.Cleanup(suite.T())
	}
}

func (suite *OrderRepositoryTestSuite) TearDownTest() {
	suite.testDB.CleanTables(suite.T())
}

func (suite *OrderRepositoryTestSuite) newPendingOrder(ref string) *domain.Order {
	items := []domain.LineItem{
		{Title: "Print", Size: "A4", Quantity: 2, UnitPrice: decimal.RequireFromString("1500")},
	}
	payer := domain.Payer{
		Email:     "lucia@example.com",
		FirstName: "Lucía",
		LastName:  "Pérez",
		Identification: domain.Identification{
			Type:   "DNI",
			Number: "30123456",
		},
	}
	order, err := domain.NewPendingOrder(ref, "ARS", decimal.RequireFromString("3000"), payer, items)
	suite.Require().NoError(err)
	return order
}

func strPtr(s string) *string { return &s }

// ============================================================================
// PHASE 1 WRITES
// ============================================================================

func (suite *OrderRepositoryTestSuite) Test_InsertPendingOrder_RoundTrip() {
	ctx := context.Background()
	t := suite.T()

	order := suite.newPendingOrder("cart-1")
	order.Metadata = json.RawMessage(`{"channel":"web"}`)

	saved, inserted, err := suite.repo.InsertPendingOrder(ctx, order)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, order.ID, saved.ID)

	found, err := suite.repo.FindByExternalReference(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, found.Status)
	assert.Equal(t, "ARS", found.Currency)
	assert.True(t, found.TotalAmount.Equal(decimal.RequireFromString("3000")))
	assert.Equal(t, "Lucía", found.Payer.FirstName)
	assert.Equal(t, "30123456", found.Payer.Identification.Number)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "A4", found.Items[0].Size)
	assert.True(t, found.Items[0].UnitPrice.Equal(decimal.RequireFromString("1500")))
	assert.JSONEq(t, `{"channel":"web"}`, string(found.Metadata))
	assert.Nil(t, found.PaymentID)
	assert.Nil(t, found.GatewayOrderID)
}

func (suite *OrderRepositoryTestSuite) Test_InsertPendingOrder_SameReferenceReturnsExisting() {
	ctx := context.Background()
	t := suite.T()

	first, inserted, err := suite.repo.InsertPendingOrder(ctx, suite.newPendingOrder("cart-dup"))
	require.NoError(t, err)
	require.True(t, inserted)

	second, inserted, err := suite.repo.InsertPendingOrder(ctx, suite.newPendingOrder("cart-dup"))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, second.ID)
}

func (suite *OrderRepositoryTestSuite) Test_UpsertOrder_AttachesGatewayOrder() {
	ctx := context.Background()
	t := suite.T()

	order, _, err := suite.repo.InsertPendingOrder(ctx, suite.newPendingOrder("cart-2"))
	require.NoError(t, err)

	order.GatewayOrderID = strPtr("ORD-2")
	order.UpdatedAt = time.Now().UTC()
	require.NoError(t, suite.repo.UpsertOrder(ctx, order))

	found, err := suite.repo.FindByGatewayOrderID(ctx, "ORD-2")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
}

func (suite *OrderRepositoryTestSuite) Test_UpsertOrder_DuplicatePaymentID() {
	ctx := context.Background()
	t := suite.T()

	a, _, err := suite.repo.InsertPendingOrder(ctx, suite.newPendingOrder("cart-a"))
	require.NoError(t, err)
	b, _, err := suite.repo.InsertPendingOrder(ctx, suite.newPendingOrder("cart-b"))
	require.NoError(t, err)

	a.PaymentID = strPtr("P-1")
	require.NoError(t, suite.repo.UpsertOrder(ctx, a))

	b.PaymentID = strPtr("P-1")
	err = suite.repo.UpsertOrder(ctx, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDuplicateOrder))
}

func (suite *OrderRepositoryTestSuite) Test_FindByID_NotFound() {
	_, err := suite.repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(suite.T(), err, domain.ErrOrderNotFound)
}

// ============================================================================
// TRANSACTIONS AND HISTORY
// ============================================================================

func (suite *OrderRepositoryTestSuite) Test_WithTx_RollsBackOnError() {
	ctx := context.Background()
	t := suite.T()

	boom := errors.New("boom")
	err := suite.repo.WithTx(ctx, func(tx ports.OrderRepository) error {
		if _, _, err := tx.InsertPendingOrder(ctx, suite.newPendingOrder("cart-rollback")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = suite.repo.FindByExternalReference(ctx, "cart-rollback")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func (suite *OrderRepositoryTestSuite) Test_History_IsAppendOnly() {
	ctx := context.Background()
	t := suite.T()

	order, _, err := suite.repo.InsertPendingOrder(ctx, suite.newPendingOrder("cart-hist"))
	require.NoError(t, err)

	for _, status := range []domain.OrderStatus{domain.StatusPending, domain.StatusInProcess, domain.StatusApproved} {
		entry := domain.NewStatusHistoryEntry(order.ID, domain.PaymentUpdate{PaymentID: "P-H", Status: status})
		require.NoError(t, suite.repo.AppendHistory(ctx, entry))
	}

	history, err := suite.repo.ListHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.StatusPending, history[0].Status)
	assert.Equal(t, domain.StatusApproved, history[2].Status)
	assert.Equal(t, "P-H", history[2].PaymentID)

	_, err = suite.testDB.DB.Pool.Exec(ctx, `UPDATE order_status_history SET status = 'rejected' WHERE order_id = $1`, order.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	_, err = suite.testDB.DB.Pool.Exec(ctx, `DELETE FROM order_status_history WHERE order_id = $1`, order.ID)
	require.Error(t, err)
}

func (suite *OrderRepositoryTestSuite) Test_FindStaleOrders() {
	ctx := context.Background()
	t := suite.T()

	stale := suite.newPendingOrder("cart-stale")
	stale.PaymentID = strPtr("P-stale")
	stale.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, suite.repo.UpsertOrder(ctx, stale))

	fresh := suite.newPendingOrder("cart-fresh")
	fresh.PaymentID = strPtr("P-fresh")
	require.NoError(t, suite.repo.UpsertOrder(ctx, fresh))

	settled := suite.newPendingOrder("cart-settled")
	settled.PaymentID = strPtr("P-settled")
	settled.Status = domain.StatusApproved
	settled.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, suite.repo.UpsertOrder(ctx, settled))

	noPayment := suite.newPendingOrder("cart-nopay")
	noPayment.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, suite.repo.UpsertOrder(ctx, noPayment))

	orders, err := suite.repo.FindStaleOrders(ctx, 10*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "P-stale", *orders[0].PaymentID)
}

// ============================================================================
// RECONCILER AGAINST POSTGRES
// ============================================================================

func (suite *OrderRepositoryTestSuite) Test_Reconcile_ConcurrentDeliveriesProduceOneOrder() {
	ctx := context.Background()
	t := suite.T()

	reconciler := service.NewReconciler(suite.repo, suite.logger)
	update := domain.PaymentUpdate{
		Source:            domain.SourcePaymentEvent,
		PaymentID:         "P-race",
		ExternalReference: "cart-race",
		Status:            domain.StatusApproved,
		StatusDetail:      "accredited",
		TotalAmount:       decimal.RequireFromString("3000"),
		Currency:          "ARS",
	}

	const deliveries = 10
	var wg sync.WaitGroup
	errs := make(chan error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reconciler.Reconcile(ctx, update)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var count int
	require.NoError(t, suite.testDB.DB.Pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&count))
	assert.Equal(t, 1, count)

	order, err := suite.repo.FindByPaymentID(ctx, "P-race")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, order.Status)
	assert.Equal(t, "cart-race", order.ExternalReference)

	history, err := suite.repo.ListHistory(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, history, deliveries)
}

func (suite *OrderRepositoryTestSuite) Test_Reconcile_ClaimsPhaseOneOrder() {
	ctx := context.Background()
	t := suite.T()

	pending, _, err := suite.repo.InsertPendingOrder(ctx, suite.newPendingOrder("cart-claim"))
	require.NoError(t, err)

	reconciler := service.NewReconciler(suite.repo, suite.logger)
	result, err := reconciler.Reconcile(ctx, domain.PaymentUpdate{
		Source:            domain.SourcePaymentEvent,
		PaymentID:         "P-claim",
		ExternalReference: "cart-claim",
		Status:            domain.StatusApproved,
		TotalAmount:       decimal.RequireFromString("9999"),
	})
	require.NoError(t, err)
	assert.False(t, result.Inserted)
	assert.True(t, result.NewlyApproved())

	order, err := suite.repo.FindByPaymentID(ctx, "P-claim")
	require.NoError(t, err)
	assert.Equal(t, pending.ID, order.ID)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("3000")), "snapshot is kept")

	// A late pending delivery does not revert the order.
	_, err = reconciler.Reconcile(ctx, domain.PaymentUpdate{
		Source:    domain.SourcePaymentEvent,
		PaymentID: "P-claim",
		Status:    domain.StatusPending,
	})
	require.NoError(t, err)

	order, err = suite.repo.FindByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, order.Status)
}

func (suite *OrderRepositoryTestSuite) Test_Reconcile_ClaimsOrderByGatewayOrderID() {
	ctx := context.Background()
	t := suite.T()

	pending, _, err := suite.repo.InsertPendingOrder(ctx, suite.newPendingOrder("cart-gw"))
	require.NoError(t, err)
	pending.GatewayOrderID = strPtr("G-claim")
	require.NoError(t, suite.repo.UpsertOrder(ctx, pending))

	reconciler := service.NewReconciler(suite.repo, suite.logger)
	result, err := reconciler.Reconcile(ctx, domain.PaymentUpdate{
		Source:         domain.SourcePaymentEvent,
		PaymentID:      "P-gw",
		GatewayOrderID: "G-claim",
		Status:         domain.StatusApproved,
	})
	require.NoError(t, err)
	assert.False(t, result.Inserted)

	order, err := suite.repo.FindByGatewayOrderIDForUpdate(ctx, "G-claim")
	require.NoError(t, err)
	assert.Equal(t, pending.ID, order.ID)
	require.NotNil(t, order.PaymentID)
	assert.Equal(t, "P-gw", *order.PaymentID)
	assert.Equal(t, domain.StatusApproved, order.Status)

	var count int
	require.NoError(t, suite.testDB.DB.Pool.QueryRow(ctx, "SELECT count(*) FROM orders").Scan(&count))
	assert.Equal(t, 1, count)
}
