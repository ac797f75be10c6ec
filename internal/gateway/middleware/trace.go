package middleware

import (
	"context"
	"strings"

	"judgegate/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	traceIDHeader   = "X-Trace-Id"
	requestIDHeader = "X-Request-Id"

	maxInboundIDLength = 128
)

// TraceMiddleware ensures each request has a trace ID and a request ID for logs and responses.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := inboundID(c.GetHeader(traceIDHeader))
		if traceID == "" {
			traceID = uuid.NewString()
		}
		requestID := inboundID(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(contextkey.GinTraceID, traceID)
		ctx := context.WithValue(c.Request.Context(), contextkey.TraceID, traceID)
		ctx = context.WithValue(ctx, contextkey.RequestID, requestID)
		ctx = context.WithValue(ctx, contextkey.ClientIP, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)

		c.Writer.Header().Set(traceIDHeader, traceID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// inboundID accepts a caller-supplied id only when it is short and printable.
func inboundID(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > maxInboundIDLength {
		return ""
	}
	for _, r := range v {
		if r < 0x21 || r > 0x7e {
			return ""
		}
	}
	return v
}
