package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/config"
	"github.com/energyforreal/attral-orders/internal/repository/postgres"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/find-order/main.go <razorpay_order_id>")
		fmt.Println("Example: go run cmd/find-order/main.go order_NXh2Qe3Fj8aK1b")
		os.Exit(1)
	}

	razorpayOrderID := os.Args[1]

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// Initialize database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := postgres.NewOrderRepository(db, logger)
	order, err := repo.GetByRazorpayOrderID(context.Background(), razorpayOrderID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Order %s\n", order.OrderNumber)
	fmt.Printf("  id:              %s\n", order.ID)
	fmt.Printf("  razorpay order:  %s\n", order.RazorpayOrderID)
	fmt.Printf("  razorpay payment:%s\n", order.RazorpayPaymentID)
	fmt.Printf("  status:          %s\n", order.Status)
	fmt.Printf("  payment status:  %s\n", order.PaymentStatus)
	fmt.Printf("  source:          %s\n", order.Source)
	fmt.Printf("  customer:        %s <%s>\n", order.CustomerName, order.CustomerEmail)
	fmt.Printf("  total:           %.2f %s\n", order.Total, order.Currency)
	fmt.Printf("  created:         %s\n", order.CreatedAt.Format("2006-01-02 15:04:05"))
	if len(order.Coupons) > 0 {
		fmt.Println("  coupons:")
		for _, c := range order.Coupons {
			fmt.Printf("    - %s\n", c.Code)
		}
	}
}
