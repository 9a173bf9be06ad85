package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/config"
	"github.com/energyforreal/attral-orders/internal/repository/postgres"
	"github.com/energyforreal/attral-orders/internal/service"
	"github.com/energyforreal/attral-orders/pkg/metrics"
)

// One-shot coupon usage reconciliation, for operators and cron.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)
	svc := service.NewReconcileService(repos, cfg.Reconcile.PageSize, metrics.NewNop(), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := svc.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reconciliation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Reconciliation complete: %d orders scanned, %d coupons updated\n",
		result.OrdersScanned, result.CouponsUpdated)
}
