package middleware

import (
	"strconv"

	"judgegate/internal/gateway/service"
	"judgegate/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const (
	headerRateLimit     = "X-RateLimit-Limit"
	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateReset     = "X-RateLimit-Reset"
)

// GeneralRateLimitMiddleware limits every request per client IP.
func GeneralRateLimitMiddleware(rateService *service.RateLimitService, policy service.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rateService == nil {
			c.Next()
			return
		}
		enforce(c, rateService, service.GeneralKey(c.ClientIP()), policy)
	}
}

// ExecutionRateLimitMiddleware limits code submissions per user, falling back to client IP.
// It runs before OptionalAuthMiddleware, so the bearer token is resolved here as well.
func ExecutionRateLimitMiddleware(rateService *service.RateLimitService, resolver service.IdentityResolver, policy service.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rateService == nil {
			c.Next()
			return
		}
		key := service.ExecutionKey(peekUserID(c, resolver), c.ClientIP())
		enforce(c, rateService, key, policy)
	}
}

func enforce(c *gin.Context, rateService *service.RateLimitService, key string, policy service.Policy) {
	decision, err := rateService.Allow(c.Request.Context(), key, policy.Max, policy.Window)
	writeRateHeaders(c, decision)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	c.Next()
}

// Later tiers overwrite earlier ones, so the headers describe the tightest limit checked.
func writeRateHeaders(c *gin.Context, d service.Decision) {
	if d.Limit <= 0 {
		return
	}
	h := c.Writer.Header()
	h.Set(headerRateLimit, strconv.Itoa(d.Limit))
	h.Set(headerRateRemaining, strconv.Itoa(d.Remaining))
	if reset := d.ResetSeconds(); reset > 0 {
		h.Set(headerRateReset, strconv.Itoa(reset))
	}
}
