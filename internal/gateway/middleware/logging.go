package middleware

import (
	"time"

	"judgegate/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLoggerMiddleware writes one access log line per request.
func RequestLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("bytes", c.Writer.Size()),
		}
		if userID := c.GetString(ginUserIDKey); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		switch {
		case status >= 500:
			logger.Error(c.Request.Context(), "request completed", fields...)
		case status >= 400:
			logger.Warn(c.Request.Context(), "request completed", fields...)
		default:
			logger.Info(c.Request.Context(), "request completed", fields...)
		}
	}
}
