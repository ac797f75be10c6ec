package middleware

import (
	"context"
	"net/http"

	"judgegate/internal/gateway/service"
	"judgegate/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const headerQuotaWarning = "X-Quota-Warning"

// QuotaReader is the read side of the quota service.
type QuotaReader interface {
	CheckQuota(ctx context.Context, identity string) service.QuotaUsage
}

// QuotaMonitorMiddleware flags submissions from callers close to their quota.
// It never blocks; enforcement happens before dispatch.
func QuotaMonitorMiddleware(quota QuotaReader, resolver service.IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if quota == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		usage := quota.CheckQuota(c.Request.Context(), peekUserID(c, resolver))
		if usage.QuotaWarning || usage.QuotaExceeded {
			logger.Warn(c.Request.Context(), "execution quota nearly exhausted",
				zap.String("identity", usage.Identity),
				zap.Int64("daily", usage.DailyExecutions),
				zap.Int64("monthly", usage.MonthlyExecutions),
				zap.Int64("total", usage.TotalExecutions),
				zap.Bool("exceeded", usage.QuotaExceeded),
			)
			c.Writer.Header().Set(headerQuotaWarning, "true")
		}
		c.Next()
	}
}
