package service

import (
	"io"
	"log/slog"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/shopspring/decimal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testPayer() domain.Payer {
	return domain.Payer{
		FirstName: "Lucía",
		LastName:  "Pérez",
		Email:     "lucia@example.com",
		Identification: domain.Identification{
			Type:   "DNI",
			Number: "30123456",
		},
	}
}

type fixture struct {
	repo       *MockOrderRepository
	gateway    *MockGateway
	notifier   *MockNotifier
	rates      *MockRateSource
	prices     *MockPriceSource
	trigger    *NotificationTrigger
	reconciler *Reconciler
	dispatcher *Dispatcher
	checkout   *CheckoutService
}

func newFixture() *fixture {
	logger := discardLogger()
	f := &fixture{
		repo:     NewMockOrderRepository(),
		gateway:  NewMockGateway(),
		notifier: &MockNotifier{},
		rates:    &MockRateSource{},
		prices: &MockPriceSource{Prices: []domain.SizePrice{
			{Size: "A4", PriceUSD: dec("33.33"), Enabled: true},
			{Size: "A3", PriceUSD: dec("50.00"), Enabled: true},
			{Size: "A2", PriceUSD: dec("90.00"), Enabled: false},
		}},
	}
	f.trigger = NewNotificationTrigger(f.notifier, "ops@example.com", time.Second, logger)
	f.reconciler = NewReconciler(f.repo, logger)
	f.dispatcher = NewDispatcher(f.gateway, f.reconciler, f.trigger, logger)

	cache := NewRateCache(f.rates, NewMockRateStore(), 10*time.Minute, logger)
	f.checkout = NewCheckoutService(
		f.repo,
		f.gateway,
		f.reconciler,
		f.trigger,
		NewPriceList(f.prices, 5*time.Minute, logger),
		NewConverter(cache, logger),
		"https://shop.example.com/api/webhooks/payments",
		logger,
	)
	return f
}
