package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/internal/webhook"
)

// HandleRazorpayWebhook handles POST /webhooks/razorpay.
// The gateway does the real work; this wrapper only moves bytes. The HMAC
// must be computed over the raw body exactly as received, so the body is
// read once here and never re-serialized.
func HandleRazorpayWebhook(gateway *webhook.Gateway, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			logger.Error("Failed to read webhook body", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}

		signature := c.GetHeader("X-Signature")
		if signature == "" {
			signature = c.GetHeader("X-Razorpay-Signature")
		}

		resp := gateway.Handle(c.Request.Context(), body, signature)
		c.JSON(resp.Status, resp.Body)
	}
}
