package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/api"
	"github.com/energyforreal/attral-orders/internal/config"
	"github.com/energyforreal/attral-orders/internal/ordermanager"
	"github.com/energyforreal/attral-orders/internal/repository/postgres"
	"github.com/energyforreal/attral-orders/internal/service"
	"github.com/energyforreal/attral-orders/internal/webhook"
	"github.com/energyforreal/attral-orders/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	logger.Info("Starting ATTRAL orders server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
	)

	// Initialize database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories and services
	repos := postgres.NewRepositories(db, logger)
	m := metrics.New()

	primary := ordermanager.NewClient(cfg.OrderManager.URL, cfg.OrderManager.Timeout, logger)
	couponUsage := service.NewCouponUsageService(repos, m, logger)
	orderSync := service.NewOrderSyncService(repos, primary, couponUsage, m, logger)
	reconcile := service.NewReconcileService(repos, cfg.Reconcile.PageSize, m, logger)
	gateway := webhook.NewGateway(cfg.Razorpay.WebhookSecret, repos.WebhookEvent, orderSync, m, logger)

	// Initialize router
	router := api.NewRouter(cfg, gateway, reconcile, couponUsage, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Coupon reconciliation: run once on startup, then on the configured interval
	jobCtx, stopJobs := context.WithCancel(context.Background())
	go service.RunReconcileLoop(jobCtx, reconcile, cfg.Reconcile.Interval, logger)
	logger.Info("Coupon reconciliation job started",
		zap.Duration("interval", cfg.Reconcile.Interval))

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopJobs()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
