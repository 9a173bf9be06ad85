package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/repository"
	"github.com/energyforreal/attral-orders/pkg/metrics"
)

// ReconcileResult reports one reconciliation run
type ReconcileResult struct {
	OrdersScanned  int
	CouponsUpdated int
}

// ReconcileService recomputes coupon usage counters from the order store.
// Incremental tracking can drift (missed webhooks, manual edits); this job
// restores the invariant that a counter equals the number of orders
// referencing the code. Safe to re-run at any time.
type ReconcileService struct {
	repos    *repository.Repositories
	pageSize int
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewReconcileService creates a new usage reconciliation job
func NewReconcileService(repos *repository.Repositories, pageSize int, m *metrics.Metrics, logger *zap.Logger) *ReconcileService {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &ReconcileService{
		repos:    repos,
		pageSize: pageSize,
		metrics:  m,
		logger:   logger,
	}
}

// Run scans the entire order store with keyset pagination, aggregates coupon
// code occurrences in memory, then overwrites each matching coupon's counter
// with the aggregate. The ctx deadline bounds the scan; a cancelled run
// writes nothing.
func (s *ReconcileService) Run(ctx context.Context) (*ReconcileResult, error) {
	started := time.Now()
	counts := make(map[string]int)
	scanned := 0

	var cursor *repository.OrderCursor
	for {
		if err := ctx.Err(); err != nil {
			s.metrics.ReconcileRuns.WithLabelValues("cancelled").Inc()
			return nil, err
		}

		orders, next, err := s.repos.Order.ListPage(ctx, cursor, s.pageSize)
		if err != nil {
			s.metrics.ReconcileRuns.WithLabelValues("error").Inc()
			return nil, err
		}

		for _, order := range orders {
			scanned++
			seen := make(map[string]bool, len(order.Coupons))
			for _, applied := range order.Coupons {
				code := normalizeCouponCode(applied.Code)
				if code == "" || seen[code] {
					continue
				}
				seen[code] = true
				counts[code]++
			}
		}

		if next == nil {
			break
		}
		cursor = next
	}

	updated, err := s.repos.Coupon.SetUsageCounts(ctx, counts)
	if err != nil {
		s.metrics.ReconcileRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	s.metrics.ReconcileRuns.WithLabelValues("ok").Inc()
	s.logger.Info("Coupon usage reconciliation complete",
		zap.Int("orders_scanned", scanned),
		zap.Int("coupons_updated", updated),
		zap.Duration("elapsed", time.Since(started)),
	)

	return &ReconcileResult{OrdersScanned: scanned, CouponsUpdated: updated}, nil
}

var reconcileMu sync.Mutex

// RunReconcileLoop runs the job once, then on every tick. Call from a
// goroutine; the mutex keeps a scheduled run from overlapping an on-demand
// trigger.
func RunReconcileLoop(ctx context.Context, svc *ReconcileService, interval time.Duration, logger *zap.Logger) {
	runOnce := func() {
		reconcileMu.Lock()
		defer reconcileMu.Unlock()
		if _, err := svc.Run(ctx); err != nil {
			logger.Error("Scheduled coupon reconciliation failed", zap.Error(err))
		}
	}

	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// RunReconcileOnce serializes an on-demand run against the scheduled loop
func RunReconcileOnce(ctx context.Context, svc *ReconcileService) (*ReconcileResult, error) {
	reconcileMu.Lock()
	defer reconcileMu.Unlock()
	return svc.Run(ctx)
}
