package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/livrinho/backend/api/routes"
	"github.com/livrinho/backend/internal/affiliates"
	"github.com/livrinho/backend/internal/cart"
	"github.com/livrinho/backend/internal/checkout"
	"github.com/livrinho/backend/internal/coupons"
	"github.com/livrinho/backend/internal/orders"
	"github.com/livrinho/backend/internal/payments"
	"github.com/livrinho/backend/pkg/config"
	"github.com/livrinho/backend/pkg/db"
	"github.com/livrinho/backend/pkg/gateway"
	"github.com/livrinho/backend/pkg/logger"
	"github.com/livrinho/backend/pkg/migrate"
	"github.com/livrinho/backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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

	gatewayClient, err := gateway.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cart.NewRepository(redisClient, cfg.Cart.TTL))
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	couponService, err := coupons.NewService(coupons.NewRepository(dbClient.DB()), cfg.Coupon.ProgressiveTable)
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}

	affiliateService, err := affiliates.NewService(affiliates.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create affiliate service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	orderService, err := orders.NewService(ordersRepo, dbClient, couponService, affiliateService)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(
		checkout.NewRepository(dbClient.DB()),
		dbClient,
		couponService,
		affiliateService,
		orderService,
		gatewayClient,
		cfg,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(
		payments.NewRepository(dbClient.DB()),
		ordersRepo,
		dbClient,
		redisClient,
		gatewayClient,
		orderService,
		cfg.Checkout,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Gateway:    gatewayClient,
			Cart:       cartService,
			Checkout:   checkoutService,
			Coupons:    couponService,
			Affiliates: affiliateService,
			Orders:     orderService,
			Payments:   paymentService,
		}),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logg.Info(ctx, "starting api server")

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
