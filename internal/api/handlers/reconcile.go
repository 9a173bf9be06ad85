package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/service"
	"github.com/energyforreal/attral-orders/pkg/errors"
)

// HandleReconcileCoupons handles POST /internal/reconcile/coupons.
// Runs the usage reconciliation job synchronously and reports its counters.
func HandleReconcileCoupons(svc *service.ReconcileService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := service.RunReconcileOnce(c.Request.Context(), svc)
		if err != nil {
			logger.Error("On-demand coupon reconciliation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"processed":      result.OrdersScanned,
			"couponsUpdated": result.CouponsUpdated,
		})
	}
}

// HandleReprocessCoupons handles POST /internal/orders/:id/reprocess-coupons.
// Manual re-run of coupon usage tracking for one order, for recovery after
// per-code failures.
func HandleReprocessCoupons(svc *service.CouponUsageService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}

		result, err := svc.Reprocess(c.Request.Context(), id)
		if err != nil {
			if _, ok := err.(*errors.ErrNotFound); ok {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			logger.Error("Coupon reprocess failed", zap.String("order_id", id.String()), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"processed": result.Processed,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
		})
	}
}
