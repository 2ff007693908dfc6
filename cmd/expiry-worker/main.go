package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/livrinho/backend/internal/affiliates"
	"github.com/livrinho/backend/internal/coupons"
	"github.com/livrinho/backend/internal/orders"
	"github.com/livrinho/backend/internal/payments"
	"github.com/livrinho/backend/pkg/config"
	"github.com/livrinho/backend/pkg/db"
	"github.com/livrinho/backend/pkg/gateway"
	"github.com/livrinho/backend/pkg/logger"
	"github.com/livrinho/backend/pkg/metrics"
	"github.com/livrinho/backend/pkg/redis"
)

const jobName = "pix-expiry-sweep"

func main() {
	logg := logger.New(logger.Options{ServiceName: "expiry-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "expiry-worker",
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

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	metricsServer := &http.Server{
		Addr:    ":" + cfg.Worker.MetricsPort,
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error(context.Background(), "metrics server stopped unexpectedly", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Worker.SweepInterval.String(),
	})
	logg.Info(ctx, "starting expiry worker")

	ticker := time.NewTicker(cfg.Worker.SweepInterval)
	defer ticker.Stop()

	sweep(ctx, paymentService, jobMetrics, logg)
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = metricsServer.Shutdown(shutdownCtx)
			cancel()
			logg.Info(ctx, "expiry worker shutting down gracefully")
			return
		case <-ticker.C:
			sweep(ctx, paymentService, jobMetrics, logg)
		}
	}
}

func sweep(ctx context.Context, svc payments.Service, jobMetrics *metrics.JobMetrics, logg *logger.Logger) {
	started := time.Now()
	expired, err := svc.ExpireOverdue(ctx, time.Now().UTC())
	jobMetrics.ObserveDuration(jobName, time.Since(started))
	if err != nil {
		jobMetrics.IncFailure(jobName)
		logg.Error(ctx, "expiry sweep failed", err)
		return
	}
	jobMetrics.IncSuccess(jobName)
	jobMetrics.AddExpired(jobName, expired)
	if expired > 0 {
		logg.Info(logg.WithField(ctx, "expired", expired), "expiry sweep cancelled overdue pix orders")
	}
}
