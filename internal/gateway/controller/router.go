package controller

import (
	"net/http"

	"judgegate/internal/execution/validator"
	"judgegate/internal/gateway/middleware"
	"judgegate/internal/gateway/service"

	"github.com/gin-gonic/gin"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	Production      bool
	FrontendURL     string
	MaxBodyBytes    int64
	GeneralPolicy   service.Policy
	ExecutionPolicy service.Policy
}

// RouterDeps wires controllers and middleware.
type RouterDeps struct {
	Executions     *ExecutionController
	System         *SystemController
	Validator      *validator.Validator
	RateLimiter    *service.RateLimitService
	Quota          middleware.QuotaReader
	Identity       service.IdentityResolver
	MetricsHandler http.Handler
}

// NewRouter builds the gateway engine. Recovery wraps the whole chain so a panic anywhere
// still yields the standard error body.
func NewRouter(cfg RouterConfig, deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(),
		middleware.SecurityHeadersMiddleware(cfg.Production),
		middleware.CORSMiddleware(middleware.DefaultCORSConfig(cfg.FrontendURL)),
		middleware.BodyLimitMiddleware(cfg.MaxBodyBytes),
		middleware.SanitizeMiddleware(),
		middleware.TraceMiddleware(),
		middleware.RequestLoggerMiddleware(),
		middleware.GeneralRateLimitMiddleware(deps.RateLimiter, cfg.GeneralPolicy),
		middleware.QuotaMonitorMiddleware(deps.Quota, deps.Identity),
	)
	router.NoRoute(middleware.NotFoundHandler())

	api := router.Group("/api")
	api.GET("/health", deps.System.Health)
	api.GET("/ready", deps.System.Ready)
	api.GET("/languages", deps.System.Languages)
	api.GET("/stats", middleware.OptionalAuthMiddleware(deps.Identity), deps.System.Stats)

	execRate := middleware.ExecutionRateLimitMiddleware(deps.RateLimiter, deps.Identity, cfg.ExecutionPolicy)
	optionalAuth := middleware.OptionalAuthMiddleware(deps.Identity)
	api.POST("/run-code",
		execRate,
		optionalAuth,
		middleware.ValidateRunCodeMiddleware(deps.Validator),
		deps.Executions.RunCode,
	)
	api.POST("/execute-with-tests",
		execRate,
		optionalAuth,
		middleware.ValidateTestsMiddleware(deps.Validator),
		deps.Executions.ExecuteWithTests,
	)

	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}
	return router
}
