package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"judgegate/internal/gateway/repository"
	pkgerrors "judgegate/pkg/errors"
	"judgegate/pkg/utils/logger"

	"go.uber.org/zap"
)

// Policy is a fixed-window limit.
type Policy struct {
	Max    int
	Window time.Duration
}

var (
	// GeneralPolicy applies to every API request, keyed by client IP.
	GeneralPolicy = Policy{Max: 100, Window: 15 * time.Minute}
	// ExecutionPolicy applies to code submission routes, keyed by user id or IP.
	ExecutionPolicy = Policy{Max: 5, Window: time.Minute}
)

// Decision is the outcome of one limiter check.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"-"`
	ResetIn    time.Duration `json:"-"`
}

// RetryAfterSeconds rounds the wait up to whole seconds, never below one when blocked.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	return ceilSeconds(d.RetryAfter)
}

// ResetSeconds is the number of seconds until the current window closes.
func (d Decision) ResetSeconds() int {
	if d.ResetIn <= 0 {
		return 0
	}
	return ceilSeconds(d.ResetIn)
}

// GeneralKey builds the general-tier counter key.
func GeneralKey(ip string) string {
	return "rate:general:ip:" + ip
}

// ExecutionKey builds the execution-tier counter key.
// Authenticated callers get their own bucket, separate from their IP.
func ExecutionKey(userID, ip string) string {
	if userID != "" {
		return "rate:exec:user:" + userID
	}
	return "rate:exec:ip:" + ip
}

// RateLimitService enforces fixed-window limits on a CounterStore.
type RateLimitService struct {
	store repository.CounterStore
}

func NewRateLimitService(store repository.CounterStore) *RateLimitService {
	return &RateLimitService{store: store}
}

// Allow consumes one unit from key's window.
// The returned error is TooManyRequests when the limit is exceeded.
// Counter-store failures are logged and the request is allowed.
func (s *RateLimitService) Allow(ctx context.Context, key string, max int, window time.Duration) (Decision, error) {
	decision := Decision{Allowed: true, Limit: max, Remaining: max}
	if max <= 0 {
		return decision, nil
	}
	if s == nil || s.store == nil {
		logger.Warn(ctx, "rate limit store unavailable, allowing request", zap.String("key", key))
		return decision, nil
	}

	count, ttl, err := s.store.Increment(ctx, key, window)
	if err != nil {
		logger.Warn(ctx, "rate limit check failed, allowing request", zap.String("key", key), zap.Error(err))
		return decision, nil
	}
	if ttl <= 0 {
		ttl = window
	}
	decision.ResetIn = ttl
	decision.Remaining = max - int(count)
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	if int(count) > max {
		decision.Allowed = false
		decision.RetryAfter = ttl
		return decision, pkgerrors.RateLimited(decision.RetryAfterSeconds()).
			WithMessage(fmt.Sprintf("Too many requests, please try again in %d seconds", decision.RetryAfterSeconds()))
	}
	return decision, nil
}

// Peek reports headroom without consuming it.
func (s *RateLimitService) Peek(ctx context.Context, key string, max int, window time.Duration) Decision {
	decision := Decision{Allowed: true, Limit: max, Remaining: max}
	if s == nil || s.store == nil || max <= 0 {
		return decision
	}
	count, err := s.store.Get(ctx, key)
	if err != nil {
		logger.Warn(ctx, "rate limit peek failed", zap.String("key", key), zap.Error(err))
		return decision
	}
	ttl, err := s.store.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		ttl = window
	}
	decision.ResetIn = ttl
	decision.Remaining = max - int(count)
	if decision.Remaining <= 0 {
		decision.Remaining = 0
		decision.Allowed = false
		decision.RetryAfter = ttl
	}
	return decision
}

func ceilSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
