// Package service orchestrates one execution request: quota, dispatch, reporting.
package service

import (
	"context"
	"time"

	"judgegate/internal/execution/judgeclient"
	"judgegate/internal/execution/model"
	"judgegate/internal/execution/reporter"
	"judgegate/internal/execution/runner"
	gwservice "judgegate/internal/gateway/service"
	pkgerrors "judgegate/pkg/errors"
	"judgegate/pkg/utils/logger"

	"go.uber.org/zap"
)

// QuotaTracker is the part of the quota service the orchestrator needs.
type QuotaTracker interface {
	CheckQuota(ctx context.Context, identity string) gwservice.QuotaUsage
	LogExecution(ctx context.Context, identity string)
	Limits() gwservice.QuotaLimits
}

// Preflighter is implemented by executors that can reject input locally.
// Input it rejects is never dispatched and never consumes quota.
type Preflighter interface {
	Preflight(in judgeclient.ExecuteInput) error
}

// Caller is who the request runs on behalf of.
type Caller struct {
	UserID string
}

// Identity is the quota and audit key for the caller.
func (c Caller) Identity() string {
	if c.UserID == "" {
		return gwservice.AnonymousIdentity
	}
	return c.UserID
}

// ExecutionService runs validated requests against the judging backend.
type ExecutionService struct {
	executor    runner.Executor
	quota       QuotaTracker
	reporter    *reporter.Reporter
	concurrency int
	now         func() time.Time
}

// Option configures an ExecutionService
type Option func(*ExecutionService)

// WithClock replaces time.Now for retry hints.
func WithClock(now func() time.Time) Option {
	return func(s *ExecutionService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewExecutionService(executor runner.Executor, quota QuotaTracker, rep *reporter.Reporter, concurrency int, opts ...Option) *ExecutionService {
	s := &ExecutionService{
		executor:    executor,
		quota:       quota,
		reporter:    rep,
		concurrency: concurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes a single program and returns the decoded result.
func (s *ExecutionService) Run(ctx context.Context, caller Caller, req model.ExecutionRequest) (*model.ExecutionResult, error) {
	in := judgeclient.ExecuteInput{
		SourceCode:     req.SourceCode,
		Language:       req.Language,
		Stdin:          req.Stdin,
		ExpectedOutput: req.ExpectedOutput,
	}
	if err := s.preflight(in); err != nil {
		return nil, err
	}
	if err := s.checkQuota(ctx, caller); err != nil {
		return nil, err
	}
	result, err := s.metered(caller).Execute(ctx, in)
	s.reporter.Record(ctx, reporter.FromResult(subject(caller, req.Language, req.SourceCode), result, err))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RunTests executes source once per test case. Per-case failures stay inside the report,
// including cases refused because the quota ran out mid-batch.
func (s *ExecutionService) RunTests(ctx context.Context, caller Caller, source, language string, cases []model.TestCase) (runner.Report, error) {
	if err := s.preflight(judgeclient.ExecuteInput{SourceCode: source, Language: language}); err != nil {
		return runner.Report{}, err
	}
	if err := s.checkQuota(ctx, caller); err != nil {
		return runner.Report{}, err
	}
	report := runner.New(s.metered(caller), s.concurrency).RunAll(ctx, source, language, cases)
	s.reporter.Record(ctx, reporter.FromSummary(subject(caller, language, source), report.Summary))
	return report, nil
}

func (s *ExecutionService) checkQuota(ctx context.Context, caller Caller) error {
	if s.quota == nil {
		return nil
	}
	usage := s.quota.CheckQuota(ctx, caller.Identity())
	if !usage.QuotaExceeded {
		return nil
	}
	return s.quotaError(ctx, usage)
}

func (s *ExecutionService) quotaError(ctx context.Context, usage gwservice.QuotaUsage) error {
	logger.Info(ctx, "execution quota exceeded",
		zap.String("identity", usage.Identity),
		zap.Int64("daily", usage.DailyExecutions),
		zap.Int64("monthly", usage.MonthlyExecutions),
		zap.Int64("total", usage.TotalExecutions),
	)
	return pkgerrors.New(pkgerrors.QuotaExceeded).
		WithDetails(map[string]any{
			"dailyExecutions":   usage.DailyExecutions,
			"monthlyExecutions": usage.MonthlyExecutions,
			"totalExecutions":   usage.TotalExecutions,
		}).
		WithRetryAfter(quotaRetryAfter(s.quota.Limits(), usage, s.now()))
}

// quotaRetryAfter is the wait until the binding window rolls over; 0 when only the lifetime ceiling is hit.
func quotaRetryAfter(limits gwservice.QuotaLimits, usage gwservice.QuotaUsage, now time.Time) int {
	now = now.UTC()
	switch {
	case limits.Total > 0 && usage.TotalExecutions >= limits.Total:
		return 0
	case limits.Monthly > 0 && usage.MonthlyExecutions >= limits.Monthly:
		return secondsUntil(now, time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC))
	default:
		return secondsUntil(now, time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC))
	}
}

func (s *ExecutionService) preflight(in judgeclient.ExecuteInput) error {
	if p, ok := s.executor.(Preflighter); ok {
		return p.Preflight(in)
	}
	return nil
}

func (s *ExecutionService) metered(caller Caller) runner.Executor {
	return &meteredExecutor{svc: s, identity: caller.Identity()}
}

// meteredExecutor consumes one unit of quota per backend dispatch, right before the call.
// Input failing preflight, or arriving after the quota ran out, is refused without dispatch.
// Concurrent cases may overshoot a ceiling by at most the runner's concurrency minus one.
type meteredExecutor struct {
	svc      *ExecutionService
	identity string
}

func (m *meteredExecutor) Execute(ctx context.Context, in judgeclient.ExecuteInput) (*model.ExecutionResult, error) {
	if err := m.svc.preflight(in); err != nil {
		return nil, err
	}
	if quota := m.svc.quota; quota != nil {
		if usage := quota.CheckQuota(ctx, m.identity); usage.QuotaExceeded {
			return nil, m.svc.quotaError(ctx, usage)
		}
		quota.LogExecution(ctx, m.identity)
	}
	return m.svc.executor.Execute(ctx, in)
}

func subject(caller Caller, language, source string) reporter.Subject {
	return reporter.Subject{
		Identity:   caller.Identity(),
		UserID:     caller.UserID,
		Language:   language,
		SourceCode: source,
	}
}

func secondsUntil(now, next time.Time) int {
	secs := int(next.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}
