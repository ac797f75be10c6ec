package controller

import (
	"context"
	"net/http"
	"time"

	"judgegate/internal/execution/language"
	"judgegate/internal/gateway/middleware"
	"judgegate/internal/gateway/service"
	"judgegate/pkg/utils/logger"
	"judgegate/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const readyTimeout = 2 * time.Second

// ExecutionHistory counts persisted execution logs per identity.
type ExecutionHistory interface {
	CountByIdentity(ctx context.Context, identity string) (int64, error)
}

// ReadinessCheck reports whether a backing dependency is reachable.
type ReadinessCheck interface {
	Ping(ctx context.Context) error
}

// SystemController serves health, usage and language metadata.
type SystemController struct {
	environment     string
	startedAt       time.Time
	registry        *language.Registry
	rateLimiter     *service.RateLimitService
	quota           *service.QuotaService
	generalPolicy   service.Policy
	executionPolicy service.Policy
	history         ExecutionHistory
	checks          map[string]ReadinessCheck
	now             func() time.Time
}

// SystemDeps are the collaborators of SystemController.
type SystemDeps struct {
	Environment     string
	Registry        *language.Registry
	RateLimiter     *service.RateLimitService
	Quota           *service.QuotaService
	GeneralPolicy   service.Policy
	ExecutionPolicy service.Policy
	// History is optional; nil leaves recordedExecutions out of stats.
	History         ExecutionHistory
	Checks          map[string]ReadinessCheck
}

func NewSystemController(deps SystemDeps) *SystemController {
	registry := deps.Registry
	if registry == nil {
		registry = language.Default()
	}
	return &SystemController{
		environment:     deps.Environment,
		startedAt:       time.Now(),
		registry:        registry,
		rateLimiter:     deps.RateLimiter,
		quota:           deps.Quota,
		generalPolicy:   deps.GeneralPolicy,
		executionPolicy: deps.ExecutionPolicy,
		history:         deps.History,
		checks:          deps.Checks,
		now:             time.Now,
	}
}

// Health reports liveness.
func (h *SystemController) Health(c *gin.Context) {
	now := h.now()
	response.Success(c, HealthResponse{
		Status:      "healthy",
		Timestamp:   now.UTC().Format(time.RFC3339),
		Uptime:      now.Sub(h.startedAt).Seconds(),
		Environment: h.environment,
	})
}

// Ready pings every configured dependency and answers 503 when any fails.
func (h *SystemController) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			logger.Warn(ctx, "readiness check failed", zap.String("dependency", name), zap.Error(err))
			resp.Status = "unavailable"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}
	if resp.Status != "ready" {
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	response.Success(c, resp)
}

// Stats reports the caller's rate-limit headroom and quota without consuming either.
func (h *SystemController) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	ip := c.ClientIP()

	general := h.rateLimiter.Peek(ctx, service.GeneralKey(ip), h.generalPolicy.Max, h.generalPolicy.Window)
	execution := h.rateLimiter.Peek(ctx, service.ExecutionKey(userID, ip), h.executionPolicy.Max, h.executionPolicy.Window)

	resp := StatsResponse{
		Identity:      identityOf(userID),
		Authenticated: userID != "",
		RateLimits: map[string]RateHeadroom{
			"general":   headroom(general),
			"execution": headroom(execution),
		},
		SupportedLanguages: h.registry.Supported(),
	}
	if h.quota != nil {
		usage := h.quota.CheckQuota(ctx, userID)
		limits := h.quota.Limits()
		resp.Quota = QuotaView{
			QuotaUsage: usage,
			Remaining:  h.quota.Remaining(usage),
			Limits: QuotaLimitsView{
				Daily:            limits.Daily,
				Monthly:          limits.Monthly,
				Total:            limits.Total,
				WarningThreshold: limits.WarningThreshold,
			},
		}
	}
	if h.history != nil {
		n, err := h.history.CountByIdentity(ctx, resp.Identity)
		if err != nil {
			logger.Warn(ctx, "count execution history failed", zap.String("identity", resp.Identity), zap.Error(err))
		} else {
			resp.RecordedExecutions = &n
		}
	}
	response.Success(c, resp)
}

// Languages lists the executable languages and their backend ids.
func (h *SystemController) Languages(c *gin.Context) {
	bindings := h.registry.AllowedBindings()
	views := make([]LanguageView, 0, len(bindings))
	for _, b := range bindings {
		views = append(views, LanguageView{Key: b.Key, BackendID: b.BackendID})
	}
	response.Success(c, LanguagesResponse{Languages: views})
}

func headroom(d service.Decision) RateHeadroom {
	return RateHeadroom{Limit: d.Limit, Remaining: d.Remaining, ResetIn: d.ResetSeconds()}
}

func identityOf(userID string) string {
	if userID == "" {
		return service.AnonymousIdentity
	}
	return userID
}
