package service

import (
	"context"
	"strings"
	"time"

	"judgegate/internal/gateway/repository"
	"judgegate/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	AnonymousIdentity = "anonymous"

	quotaDailyPrefix   = "quota:daily:"
	quotaMonthlyPrefix = "quota:monthly:"
	quotaTotalPrefix   = "quota:total:"
	quotaLastPrefix    = "quota:last:"

	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"

	dailyRetentionDays     = 30
	monthlyRetentionMonths = 12
)

// QuotaLimits are the cumulative dispatch ceilings toward the judging backend.
// A zero ceiling disables that window.
type QuotaLimits struct {
	Daily            int64
	Monthly          int64
	Total            int64
	WarningThreshold float64
}

// DefaultQuotaLimits returns the limits used when nothing is configured.
func DefaultQuotaLimits() QuotaLimits {
	return QuotaLimits{
		Daily:            1000,
		Monthly:          20000,
		Total:            0,
		WarningThreshold: 0.9,
	}
}

// QuotaUsage is a point-in-time snapshot of an identity's consumption.
type QuotaUsage struct {
	Identity          string     `json:"identity"`
	DailyExecutions   int64      `json:"dailyExecutions"`
	MonthlyExecutions int64      `json:"monthlyExecutions"`
	TotalExecutions   int64      `json:"totalExecutions"`
	LastExecution     *time.Time `json:"lastExecutionTimestamp"`
	QuotaExceeded     bool       `json:"quotaExceeded"`
	QuotaWarning      bool       `json:"quotaWarning"`
}

// QuotaRemaining is the headroom left per window; -1 means unlimited.
type QuotaRemaining struct {
	Daily   int64 `json:"daily"`
	Monthly int64 `json:"monthly"`
	Total   int64 `json:"total"`
}

// QuotaService tracks dispatches per identity in daily, monthly and lifetime buckets.
// Bookkeeping never fails the caller: store errors are logged and treated as zero usage.
type QuotaService struct {
	store  repository.CounterStore
	limits QuotaLimits
	now    func() time.Time
}

// QuotaOption configures a QuotaService
type QuotaOption func(*QuotaService)

// WithQuotaClock replaces time.Now for bucket selection.
func WithQuotaClock(now func() time.Time) QuotaOption {
	return func(s *QuotaService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewQuotaService(store repository.CounterStore, limits QuotaLimits, opts ...QuotaOption) *QuotaService {
	if limits.WarningThreshold <= 0 || limits.WarningThreshold > 1 {
		limits.WarningThreshold = DefaultQuotaLimits().WarningThreshold
	}
	s := &QuotaService{store: store, limits: limits, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limits returns the configured ceilings.
func (s *QuotaService) Limits() QuotaLimits {
	return s.limits
}

// CheckQuota reads the identity's counters without modifying them.
func (s *QuotaService) CheckQuota(ctx context.Context, identity string) QuotaUsage {
	identity = normalizeIdentity(identity)
	usage := QuotaUsage{Identity: identity}
	if s.store == nil {
		return usage
	}

	now := s.now().UTC()
	var err error
	if usage.DailyExecutions, err = s.store.Get(ctx, dailyKey(identity, now)); err != nil {
		return s.degraded(ctx, identity, err)
	}
	if usage.MonthlyExecutions, err = s.store.Get(ctx, monthlyKey(identity, now)); err != nil {
		return s.degraded(ctx, identity, err)
	}
	if usage.TotalExecutions, err = s.store.Get(ctx, quotaTotalPrefix+identity); err != nil {
		return s.degraded(ctx, identity, err)
	}
	if last, err := s.store.Get(ctx, quotaLastPrefix+identity); err == nil && last > 0 {
		ts := time.UnixMilli(last).UTC()
		usage.LastExecution = &ts
	}

	usage.QuotaExceeded = s.exceeded(usage)
	usage.QuotaWarning = s.warning(usage)
	return usage
}

// LogExecution records one dispatch against every window.
func (s *QuotaService) LogExecution(ctx context.Context, identity string) {
	identity = normalizeIdentity(identity)
	if s.store == nil {
		return
	}
	now := s.now().UTC()
	for _, key := range []string{dailyKey(identity, now), monthlyKey(identity, now), quotaTotalPrefix + identity} {
		if _, _, err := s.store.Increment(ctx, key, 0); err != nil {
			logger.Warn(ctx, "quota increment failed", zap.String("key", key), zap.Error(err))
		}
	}
	if err := s.store.Set(ctx, quotaLastPrefix+identity, now.UnixMilli(), 0); err != nil {
		logger.Warn(ctx, "quota timestamp update failed", zap.String("identity", identity), zap.Error(err))
	}
}

// Remaining computes the headroom left in each window.
func (s *QuotaService) Remaining(usage QuotaUsage) QuotaRemaining {
	return QuotaRemaining{
		Daily:   headroom(s.limits.Daily, usage.DailyExecutions),
		Monthly: headroom(s.limits.Monthly, usage.MonthlyExecutions),
		Total:   headroom(s.limits.Total, usage.TotalExecutions),
	}
}

// ResetDailyQuota clears every daily bucket. It is meant to be called by an external scheduler.
func (s *QuotaService) ResetDailyQuota(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	keys, err := s.store.Keys(ctx, quotaDailyPrefix)
	if err != nil {
		return 0, err
	}
	if err := s.store.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	logger.Info(ctx, "daily quota reset", zap.Int("buckets", len(keys)))
	return len(keys), nil
}

// CleanupOldData prunes daily buckets older than 30 days and monthly buckets older than 12 months.
func (s *QuotaService) CleanupOldData(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	now := s.now().UTC()
	dailyCutoff := startOfDay(now).AddDate(0, 0, -dailyRetentionDays)
	monthlyCutoff := startOfMonth(now).AddDate(0, -monthlyRetentionMonths, 0)

	var stale []string
	dailyKeys, err := s.store.Keys(ctx, quotaDailyPrefix)
	if err != nil {
		return 0, err
	}
	for _, key := range dailyKeys {
		if day, ok := bucketTime(key, dayLayout); ok && day.Before(dailyCutoff) {
			stale = append(stale, key)
		}
	}
	monthlyKeys, err := s.store.Keys(ctx, quotaMonthlyPrefix)
	if err != nil {
		return 0, err
	}
	for _, key := range monthlyKeys {
		if month, ok := bucketTime(key, monthLayout); ok && month.Before(monthlyCutoff) {
			stale = append(stale, key)
		}
	}

	if err := s.store.Delete(ctx, stale...); err != nil {
		return 0, err
	}
	logger.Info(ctx, "quota cleanup finished", zap.Int("removed", len(stale)))
	return len(stale), nil
}

func (s *QuotaService) degraded(ctx context.Context, identity string, err error) QuotaUsage {
	logger.Warn(ctx, "quota lookup failed, treating usage as zero", zap.String("identity", identity), zap.Error(err))
	return QuotaUsage{Identity: identity}
}

func (s *QuotaService) exceeded(u QuotaUsage) bool {
	return reached(s.limits.Daily, u.DailyExecutions, 1) ||
		reached(s.limits.Monthly, u.MonthlyExecutions, 1) ||
		reached(s.limits.Total, u.TotalExecutions, 1)
}

func (s *QuotaService) warning(u QuotaUsage) bool {
	t := s.limits.WarningThreshold
	return reached(s.limits.Daily, u.DailyExecutions, t) ||
		reached(s.limits.Monthly, u.MonthlyExecutions, t) ||
		reached(s.limits.Total, u.TotalExecutions, t)
}

func reached(limit, used int64, fraction float64) bool {
	if limit <= 0 {
		return false
	}
	return float64(used) >= fraction*float64(limit)
}

func headroom(limit, used int64) int64 {
	if limit <= 0 {
		return -1
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

func normalizeIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return AnonymousIdentity
	}
	return identity
}

func dailyKey(identity string, now time.Time) string {
	return quotaDailyPrefix + identity + ":" + now.Format(dayLayout)
}

func monthlyKey(identity string, now time.Time) string {
	return quotaMonthlyPrefix + identity + ":" + now.Format(monthLayout)
}

// bucketTime parses the date suffix after the last ':' of a bucket key.
func bucketTime(key, layout string) (time.Time, bool) {
	idx := strings.LastIndex(key, ":")
	if idx < 0 || idx == len(key)-1 {
		return time.Time{}, false
	}
	t, err := time.Parse(layout, key[idx+1:])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
