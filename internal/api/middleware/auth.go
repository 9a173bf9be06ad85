package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InternalAuthMiddleware guards the /internal endpoints with a shared token.
// Requests carry it either as "Authorization: Bearer <token>" or in
// X-Internal-Token. A server with no token configured refuses the routes
// outright rather than leaving them open.
func InternalAuthMiddleware(token string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "internal endpoints not configured"})
			c.Abort()
			return
		}

		presented := strings.TrimSpace(c.GetHeader("X-Internal-Token"))
		if presented == "" {
			authHeader := c.GetHeader("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				presented = strings.TrimSpace(parts[1])
			}
		}

		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			logger.Warn("Rejected internal request with bad token", zap.String("path", c.Request.URL.Path))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid internal token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
