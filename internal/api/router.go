package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/api/handlers"
	"github.com/energyforreal/attral-orders/internal/api/middleware"
	"github.com/energyforreal/attral-orders/internal/config"
	"github.com/energyforreal/attral-orders/internal/service"
	"github.com/energyforreal/attral-orders/internal/webhook"
	"github.com/energyforreal/attral-orders/pkg/metrics"
)

// NewRouter creates and configures the Gin router
func NewRouter(
	cfg *config.Config,
	gateway *webhook.Gateway,
	reconcile *service.ReconcileService,
	couponUsage *service.CouponUsageService,
	logger *zap.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	// The provider expects 405 (not 404) on a non-POST probe of the webhook
	router.HandleMethodNotAllowed = true

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))

	// Root: friendly response so GET / returns 200 instead of 404
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "ATTRAL Orders API",
			"endpoints": []string{
				"GET /health",
				"GET /metrics",
				"POST /webhooks/razorpay",
				"POST /internal/reconcile/coupons",
				"POST /internal/orders/:id/reprocess-coupons",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Razorpay webhook: payment events create/update orders
	router.POST("/webhooks/razorpay", handlers.HandleRazorpayWebhook(gateway, logger))

	// Internal operator endpoints
	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware(cfg.InternalAPIToken, logger))
	{
		internal.POST("/reconcile/coupons", handlers.HandleReconcileCoupons(reconcile, logger))
		internal.POST("/orders/:id/reprocess-coupons", handlers.HandleReprocessCoupons(couponUsage, logger))
	}

	return router
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"details": fmt.Sprintf("%v", recovered),
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
	}
}
