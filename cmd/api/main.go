package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/craftandcart/storefront-backend/api/routes"
	"github.com/craftandcart/storefront-backend/internal/cart"
	checkoutsvc "github.com/craftandcart/storefront-backend/internal/checkout"
	"github.com/craftandcart/storefront-backend/internal/inventory"
	"github.com/craftandcart/storefront-backend/internal/orders"
	"github.com/craftandcart/storefront-backend/internal/payments"
	"github.com/craftandcart/storefront-backend/internal/products"
	stripewebhook "github.com/craftandcart/storefront-backend/internal/webhooks/stripe"
	"github.com/craftandcart/storefront-backend/pkg/config"
	"github.com/craftandcart/storefront-backend/pkg/db"
	"github.com/craftandcart/storefront-backend/pkg/logger"
	"github.com/craftandcart/storefront-backend/pkg/metrics"
	"github.com/craftandcart/storefront-backend/pkg/migrate"
	"github.com/craftandcart/storefront-backend/pkg/redis"
	pkgstripe "github.com/craftandcart/storefront-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	productRepo := products.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	orderRepo := orders.NewRepository(gormDB)
	paymentRepo := payments.NewRepository(gormDB)
	ledger := inventory.NewLedger(logg)

	cartService := cart.NewService(cartRepo, productRepo)
	ordersService := orders.NewService(orderRepo, ledger, dbClient, logg)
	checkoutService := checkoutsvc.NewService(
		productRepo, orderRepo, paymentRepo,
		stripeClient, dbClient, cfg.Checkout, logg,
	)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		OrderRepo:         orderRepo,
		PaymentRepo:       paymentRepo,
		CartRepo:          cartRepo,
		Ledger:            ledger,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "stripe")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)

	handler := routes.NewRouter(routes.Deps{
		Config:          cfg,
		Logger:          logg,
		Metrics:         httpMetrics,
		DBPinger:        dbClient,
		RedisPinger:     redisClient,
		ProductRepo:     productRepo,
		CartService:     cartService,
		CheckoutService: checkoutService,
		OrdersService:   ordersService,
		StripeClient:    stripeClient,
		WebhookSvc:      webhookService,
		WebhookGuard:    webhookGuard,
		PromGatherers:   registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
