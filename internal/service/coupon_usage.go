package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/domain"
	"github.com/energyforreal/attral-orders/internal/repository"
	"github.com/energyforreal/attral-orders/pkg/errors"
	"github.com/energyforreal/attral-orders/pkg/metrics"
)

// UsageResult aggregates per-code outcomes of a coupon usage pass
type UsageResult struct {
	Processed int
	Succeeded int
	Failed    int
	Results   []domain.CouponResult
}

// CouponUsageService increments coupon usage counters when an order record
// is created. Increments are atomic on the store, so concurrent orders
// referencing the same coupon cannot lose updates; the reconciliation job
// remains the authoritative recount on top of that.
type CouponUsageService struct {
	repos   *repository.Repositories
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewCouponUsageService creates a new coupon usage tracker
func NewCouponUsageService(repos *repository.Repositories, m *metrics.Metrics, logger *zap.Logger) *CouponUsageService {
	return &CouponUsageService{
		repos:   repos,
		metrics: m,
		logger:  logger,
	}
}

// OnOrderCreated bumps the counter for every coupon the order references.
// A code with no matching coupon is a per-code failure; it never aborts the
// batch. Outcomes are persisted on the order row so reprocessing is auditable.
func (s *CouponUsageService) OnOrderCreated(ctx context.Context, order *domain.Order) *UsageResult {
	result := &UsageResult{}

	for _, applied := range order.Coupons {
		code := normalizeCouponCode(applied.Code)
		if code == "" {
			continue
		}
		result.Processed++

		if err := s.repos.Coupon.IncrementUsage(ctx, code); err != nil {
			result.Failed++
			s.metrics.CouponFailures.Inc()

			message := err.Error()
			if _, ok := err.(*errors.ErrNotFound); ok {
				message = "coupon not found"
			}
			s.logger.Warn("Coupon usage increment failed",
				zap.String("code", code),
				zap.String("order_number", order.OrderNumber),
				zap.Error(err),
			)
			result.Results = append(result.Results, domain.CouponResult{
				Code:    code,
				Status:  "failed",
				Message: message,
			})
			continue
		}

		result.Succeeded++
		result.Results = append(result.Results, domain.CouponResult{
			Code:   code,
			Status: "incremented",
		})
	}

	if len(result.Results) > 0 {
		if err := s.repos.Order.UpdateCouponResults(ctx, order.ID, result.Results); err != nil {
			s.logger.Warn("Failed to persist coupon results on order",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err),
			)
		}
	}

	return result
}

// Reprocess re-runs coupon tracking for an existing order, for manual
// recovery when an earlier pass recorded failures.
func (s *CouponUsageService) Reprocess(ctx context.Context, orderID uuid.UUID) (*UsageResult, error) {
	order, err := s.repos.Order.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.OnOrderCreated(ctx, order), nil
}

// normalizeCouponCode trims and uppercases a code; both the tracker and the
// reconciliation job must normalize identically or counters drift.
func normalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
