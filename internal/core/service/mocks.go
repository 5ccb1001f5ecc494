package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockOrderRepository is an in-memory OrderRepository. WithTx serializes
// transactions so concurrent reconciles behave like row-locked writers.
type MockOrderRepository struct {
	mu      sync.RWMutex
	txMu    sync.Mutex
	orders  map[uuid.UUID]*domain.Order
	history []domain.StatusHistoryEntry

	UpsertOrderFn        func(ctx context.Context, order *domain.Order) error
	InsertPendingOrderFn func(ctx context.Context, order *domain.Order) (*domain.Order, bool, error)
	AppendHistoryFn      func(ctx context.Context, entry domain.StatusHistoryEntry) error
	ListHistoryFn        func(ctx context.Context, orderID uuid.UUID) ([]domain.StatusHistoryEntry, error)
	FindStaleOrdersFn    func(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Order, error)
	WithTxFn             func(ctx context.Context, fn func(repo ports.OrderRepository) error) error
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[uuid.UUID]*domain.Order),
	}
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.LineItem(nil), o.Items...)
	if o.PaymentID != nil {
		id := *o.PaymentID
		c.PaymentID = &id
	}
	if o.GatewayOrderID != nil {
		id := *o.GatewayOrderID
		c.GatewayOrderID = &id
	}
	return &c
}

func (m *MockOrderRepository) find(match func(*domain.Order) bool) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if match(o) {
			return cloneOrder(o), nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return m.find(func(o *domain.Order) bool { return o.ID == id })
}

func (m *MockOrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	return m.find(func(o *domain.Order) bool { return o.PaymentID != nil && *o.PaymentID == paymentID })
}

func (m *MockOrderRepository) FindByPaymentIDForUpdate(ctx context.Context, paymentID string) (*domain.Order, error) {
	return m.FindByPaymentID(ctx, paymentID)
}

func (m *MockOrderRepository) FindByExternalReference(ctx context.Context, ref string) (*domain.Order, error) {
	return m.find(func(o *domain.Order) bool { return ref != "" && o.ExternalReference == ref })
}

func (m *MockOrderRepository) FindByExternalReferenceForUpdate(ctx context.Context, ref string) (*domain.Order, error) {
	return m.FindByExternalReference(ctx, ref)
}

func (m *MockOrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	return m.find(func(o *domain.Order) bool { return o.GatewayOrderID != nil && *o.GatewayOrderID == gatewayOrderID })
}

func (m *MockOrderRepository) FindByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	return m.FindByGatewayOrderID(ctx, gatewayOrderID)
}

func (m *MockOrderRepository) FindStaleOrders(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Order, error) {
	if m.FindStaleOrdersFn != nil {
		return m.FindStaleOrdersFn(ctx, olderThan, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-olderThan)
	var out []*domain.Order
	for _, o := range m.orders {
		if o.PaymentID == nil || o.Status.IsTerminal() || o.UpdatedAt.After(cutoff) {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockOrderRepository) InsertPendingOrder(ctx context.Context, order *domain.Order) (*domain.Order, bool, error) {
	if m.InsertPendingOrderFn != nil {
		return m.InsertPendingOrderFn(ctx, order)
	}
	if existing, err := m.FindByExternalReference(ctx, order.ExternalReference); err == nil {
		return existing, false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = cloneOrder(order)
	return cloneOrder(order), true, nil
}

func (m *MockOrderRepository) UpsertOrder(ctx context.Context, order *domain.Order) error {
	if m.UpsertOrderFn != nil {
		return m.UpsertOrderFn(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, o := range m.orders {
		if id == order.ID {
			continue
		}
		if order.PaymentID != nil && o.PaymentID != nil && *o.PaymentID == *order.PaymentID {
			return domain.ErrDuplicateOrder
		}
		if order.ExternalReference != "" && o.ExternalReference == order.ExternalReference {
			return domain.ErrDuplicateOrder
		}
		if order.GatewayOrderID != nil && o.GatewayOrderID != nil && *o.GatewayOrderID == *order.GatewayOrderID {
			return domain.ErrDuplicateOrder
		}
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *MockOrderRepository) LockPayment(ctx context.Context, paymentID string) error {
	return nil
}

func (m *MockOrderRepository) AppendHistory(ctx context.Context, entry domain.StatusHistoryEntry) error {
	if m.AppendHistoryFn != nil {
		return m.AppendHistoryFn(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, entry)
	return nil
}

func (m *MockOrderRepository) ListHistory(ctx context.Context, orderID uuid.UUID) ([]domain.StatusHistoryEntry, error) {
	if m.ListHistoryFn != nil {
		return m.ListHistoryFn(ctx, orderID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.StatusHistoryEntry
	for _, h := range m.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *MockOrderRepository) WithTx(ctx context.Context, fn func(repo ports.OrderRepository) error) error {
	if m.WithTxFn != nil {
		return m.WithTxFn(ctx, fn)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	// Roll back on error by restoring a snapshot.
	m.mu.RLock()
	orders := make(map[uuid.UUID]*domain.Order, len(m.orders))
	for id, o := range m.orders {
		orders[id] = cloneOrder(o)
	}
	history := append([]domain.StatusHistoryEntry(nil), m.history...)
	m.mu.RUnlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.orders = orders
		m.history = history
		m.mu.Unlock()
		return err
	}
	return nil
}

// OrderCount returns the number of stored orders.
func (m *MockOrderRepository) OrderCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

// MockGateway
type MockGateway struct {
	mu    sync.Mutex
	calls map[string]int
	keys  []string
	Delay time.Duration

	CreateOrderFn        func(ctx context.Context, req domain.CreateOrderRequest, idempotencyKey string) (*domain.CreateOrderResponse, error)
	CreatePaymentFn      func(ctx context.Context, req domain.CreatePaymentRequest, idempotencyKey string) (*domain.CreatePaymentResponse, error)
	GetPaymentFn         func(ctx context.Context, paymentID string) (*domain.PaymentEvent, error)
	GetOrderFn           func(ctx context.Context, orderID string) (*domain.OrderEvent, error)
	ListPaymentMethodsFn func(ctx context.Context) ([]domain.PaymentMethod, error)
	GetInstallmentsFn    func(ctx context.Context, q domain.InstallmentsQuery) ([]domain.InstallmentOption, error)
	GetCardIssuersFn     func(ctx context.Context, bin, paymentMethodID string) ([]domain.CardIssuer, error)
}

func NewMockGateway() *MockGateway {
	return &MockGateway{calls: make(map[string]int)}
}

func (m *MockGateway) inc(method, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
	if key != "" {
		m.keys = append(m.keys, key)
	}
}

func (m *MockGateway) GetCalls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// IdempotencyKeys returns the keys seen on mutating calls, in order.
func (m *MockGateway) IdempotencyKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...)
}

func (m *MockGateway) wait() {
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
}

func (m *MockGateway) CreateOrder(ctx context.Context, req domain.CreateOrderRequest, idempotencyKey string) (*domain.CreateOrderResponse, error) {
	m.inc("CreateOrder", idempotencyKey)
	m.wait()
	if m.CreateOrderFn != nil {
		return m.CreateOrderFn(ctx, req, idempotencyKey)
	}
	return &domain.CreateOrderResponse{ID: "G1", Status: "created", ExternalReference: req.ExternalReference}, nil
}

func (m *MockGateway) CreatePayment(ctx context.Context, req domain.CreatePaymentRequest, idempotencyKey string) (*domain.CreatePaymentResponse, error) {
	m.inc("CreatePayment", idempotencyKey)
	m.wait()
	if m.CreatePaymentFn != nil {
		return m.CreatePaymentFn(ctx, req, idempotencyKey)
	}
	return &domain.CreatePaymentResponse{ID: "P1", Status: "pending", StatusDetail: "pending_contingency"}, nil
}

func (m *MockGateway) GetPayment(ctx context.Context, paymentID string) (*domain.PaymentEvent, error) {
	m.inc("GetPayment", "")
	m.wait()
	if m.GetPaymentFn != nil {
		return m.GetPaymentFn(ctx, paymentID)
	}
	return &domain.PaymentEvent{ID: paymentID, Status: "approved", StatusDetail: "accredited"}, nil
}

func (m *MockGateway) GetOrder(ctx context.Context, orderID string) (*domain.OrderEvent, error) {
	m.inc("GetOrder", "")
	m.wait()
	if m.GetOrderFn != nil {
		return m.GetOrderFn(ctx, orderID)
	}
	return &domain.OrderEvent{ID: orderID, Status: "processed"}, nil
}

func (m *MockGateway) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	m.inc("ListPaymentMethods", "")
	if m.ListPaymentMethodsFn != nil {
		return m.ListPaymentMethodsFn(ctx)
	}
	return []domain.PaymentMethod{{ID: "visa", Name: "Visa", PaymentTypeID: "credit_card", Status: "active"}}, nil
}

func (m *MockGateway) GetInstallments(ctx context.Context, q domain.InstallmentsQuery) ([]domain.InstallmentOption, error) {
	m.inc("GetInstallments", "")
	if m.GetInstallmentsFn != nil {
		return m.GetInstallmentsFn(ctx, q)
	}
	return []domain.InstallmentOption{{PaymentMethodID: "visa", PayerCosts: []domain.PayerCost{{Installments: 1, TotalAmount: q.Amount}}}}, nil
}

func (m *MockGateway) GetCardIssuers(ctx context.Context, bin, paymentMethodID string) ([]domain.CardIssuer, error) {
	m.inc("GetCardIssuers", "")
	if m.GetCardIssuersFn != nil {
		return m.GetCardIssuersFn(ctx, bin, paymentMethodID)
	}
	return []domain.CardIssuer{{ID: "1", Name: "Default"}}, nil
}

// MockRateSource
type MockRateSource struct {
	mu    sync.Mutex
	calls int
	Delay time.Duration

	FetchRateFn func(ctx context.Context, currency string) (domain.ExchangeRate, error)
}

func (m *MockRateSource) FetchRate(ctx context.Context, currency string) (domain.ExchangeRate, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	if m.FetchRateFn != nil {
		return m.FetchRateFn(ctx, currency)
	}
	c, _ := domain.LookupCurrency(currency)
	return domain.ExchangeRate{Currency: currency, Rate: c.FallbackRate, FetchedAt: time.Now()}, nil
}

func (m *MockRateSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockRateStore keeps rates in a map and expires them after the ttl given to
// Set, like the real stores.
type MockRateStore struct {
	mu      sync.Mutex
	rates   map[string]domain.ExchangeRate
	expires map[string]time.Time
	lastTTL time.Duration

	Now func() time.Time
}

func NewMockRateStore() *MockRateStore {
	return &MockRateStore{
		rates:   make(map[string]domain.ExchangeRate),
		expires: make(map[string]time.Time),
		Now:     time.Now,
	}
}

func (m *MockRateStore) Get(ctx context.Context, currency string) (domain.ExchangeRate, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rates[currency]
	if !ok || !m.Now().Before(m.expires[currency]) {
		return domain.ExchangeRate{}, false, nil
	}
	return r, true, nil
}

func (m *MockRateStore) Set(ctx context.Context, rate domain.ExchangeRate, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[rate.Currency] = rate
	m.expires[rate.Currency] = m.Now().Add(ttl)
	m.lastTTL = ttl
	return nil
}

// LastTTL returns the ttl passed to the latest Set.
func (m *MockRateStore) LastTTL() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTTL
}

// MockPriceSource
type MockPriceSource struct {
	mu     sync.Mutex
	calls  int
	Prices []domain.SizePrice
	Err    error
}

func (m *MockPriceSource) FetchPrices(ctx context.Context) ([]domain.SizePrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.Prices, m.Err
}

func (m *MockPriceSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockNotifier records sends through testify's mock.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, recipient domain.Recipient, to string, data domain.PaymentNotificationData) error {
	args := m.Called(ctx, recipient, to, data)
	return args.Error(0)
}
