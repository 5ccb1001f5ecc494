package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/adapters/catalog"
	"github.com/DanielPopoola/storefront-checkout/internal/adapters/gateway"
	"github.com/DanielPopoola/storefront-checkout/internal/adapters/handler"
	"github.com/DanielPopoola/storefront-checkout/internal/adapters/handler/middleware"
	"github.com/DanielPopoola/storefront-checkout/internal/adapters/mailer"
	"github.com/DanielPopoola/storefront-checkout/internal/adapters/postgres"
	"github.com/DanielPopoola/storefront-checkout/internal/adapters/rates"
	"github.com/DanielPopoola/storefront-checkout/internal/adapters/webhook"
	"github.com/DanielPopoola/storefront-checkout/internal/config"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
	"github.com/DanielPopoola/storefront-checkout/internal/core/service"
	"github.com/DanielPopoola/storefront-checkout/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting checkout service",
		"env", cfg.Primary.Env,
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	orderRepo := postgres.NewOrderRepository(db)

	gatewayClient := gateway.NewGatewayClient(cfg.Gateway)
	retryGateway := gateway.NewRetryGatewayClient(gatewayClient, cfg.Retry)

	var rateStore ports.RateStore = rates.NewMemoryStore()
	if cfg.Rates.RedisAddr != "" {
		redisClient, err := rates.NewRedisClient(ctx, cfg.Rates, logger)
		if err != nil {
			logger.Warn("rate cache unavailable, using in-process store", "error", err)
		} else {
			defer redisClient.Close()
			rateStore = rates.NewRedisStore(redisClient, logger)
		}
	}
	rateCache := service.NewRateCache(rates.NewHTTPRateSource(cfg.Rates), rateStore, cfg.Rates.TTL, logger)
	converter := service.NewConverter(rateCache, logger)
	priceList := service.NewPriceList(catalog.NewHTTPPriceSource(cfg.Catalog), cfg.Catalog.TTL, logger)

	if cfg.Mailer.BaseURL == "" {
		logger.Warn("mailer not configured, approval emails will fail and be logged")
	}
	notifications := service.NewNotificationTrigger(
		mailer.NewHTTPNotifier(cfg.Mailer),
		cfg.Mailer.OperatorEmail,
		cfg.Mailer.Timeout,
		logger,
	)

	reconciler := service.NewReconciler(orderRepo, logger)
	dispatcher := service.NewDispatcher(retryGateway, reconciler, notifications, logger)
	checkoutService := service.NewCheckoutService(
		orderRepo,
		retryGateway,
		reconciler,
		notifications,
		priceList,
		converter,
		cfg.Gateway.NotificationURL,
		logger,
	)

	schema, err := handler.LoadNotificationSchema(ctx)
	if err != nil {
		logger.Error("failed to load webhook schema", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	handler.RegisterHealthRoutes(mux)
	handler.NewCheckoutHandler(checkoutService, logger).RegisterRoutes(mux)
	handler.NewWebhookHandler(
		webhook.NewVerifier(cfg.Webhook.Secret, logger),
		dispatcher,
		schema,
		cfg.Webhook,
		logger,
	).RegisterRoutes(mux)

	router := http.Handler(mux)

	h := middleware.Recovery(logger)(router)
	h = middleware.Logging(logger)(h)
	h = middleware.Timeout(cfg.Server.WriteTimeout)(h)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sweeper := worker.NewSweeper(orderRepo, dispatcher, cfg.Worker, logger)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go sweeper.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	notified := make(chan struct{})
	go func() {
		notifications.Wait()
		close(notified)
	}()
	select {
	case <-notified:
	case <-shutdownCtx.Done():
		logger.Warn("pending notifications abandoned at shutdown")
	}

	logger.Info("server exited")
}
