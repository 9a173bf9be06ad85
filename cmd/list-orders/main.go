package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/config"
	"github.com/energyforreal/attral-orders/internal/repository"
	"github.com/energyforreal/attral-orders/internal/repository/postgres"
)

// Lists recent orders page by page, mostly for checking what the webhook
// has been writing.
func main() {
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

	repo := postgres.NewOrderRepository(db, logger)

	ctx := context.Background()
	var cursor *repository.OrderCursor
	total := 0
	for {
		orders, next, err := repo.ListPage(ctx, cursor, 100)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
			os.Exit(1)
		}
		for _, o := range orders {
			total++
			fmt.Printf("%-12s %-22s %-10s %-9s %-8s %8.2f %s\n",
				o.OrderNumber, o.RazorpayOrderID, o.PaymentStatus, o.Status, o.Source, o.Total, o.Currency)
		}
		if next == nil {
			break
		}
		cursor = next
	}
	fmt.Printf("\n%d orders\n", total)
}
