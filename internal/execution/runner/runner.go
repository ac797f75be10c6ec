// Package runner fans a batch of test cases out to the judging backend and aggregates the verdicts.
package runner

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"judgegate/internal/execution/judgeclient"
	"judgegate/internal/execution/model"
	"judgegate/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 4
	errorActual        = "Error"
)

// Executor runs one submission. judgeclient.Client satisfies it.
type Executor interface {
	Execute(ctx context.Context, in judgeclient.ExecuteInput) (*model.ExecutionResult, error)
}

// Report is the ordered outcome of a batch.
type Report struct {
	Results []model.TestResult   `json:"results"`
	Summary model.ResultsSummary `json:"summary"`
}

// Runner dispatches test cases with bounded concurrency.
type Runner struct {
	executor    Executor
	concurrency int
}

func New(executor Executor, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Runner{executor: executor, concurrency: concurrency}
}

// Concurrency returns the configured fan-out limit.
func (r *Runner) Concurrency() int {
	return r.concurrency
}

// RunAll executes every case against the same program. Results keep input order
// and carry a 1-based Index.
// Per-case failures are recorded on the result; RunAll itself never fails.
func (r *Runner) RunAll(ctx context.Context, source, language string, cases []model.TestCase) Report {
	results := make([]model.TestResult, len(cases))
	for i, tc := range cases {
		results[i] = model.TestResult{Index: i + 1, TestCase: tc, State: model.CaseQueued}
	}
	if len(cases) == 0 {
		return Report{Results: results, Summary: Summarize(results)}
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range cases {
		g.Go(func() error {
			r.runCase(gctx, source, language, &results[i])
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(results)
	logger.Info(ctx, "test batch finished",
		zap.String("language", language),
		zap.Int("total", summary.TotalTests),
		zap.Int("passed", summary.PassedTests),
		zap.Duration("elapsed", time.Since(start)),
	)
	return Report{Results: results, Summary: summary}
}

func (r *Runner) runCase(ctx context.Context, source, language string, res *model.TestResult) {
	res.State = model.CaseDispatched
	out, err := r.executor.Execute(ctx, judgeclient.ExecuteInput{
		SourceCode:     source,
		Language:       language,
		Stdin:          res.TestCase.Input,
		ExpectedOutput: res.TestCase.Expected,
	})
	if err != nil {
		res.State = model.CaseFailed
		res.Actual = errorActual
		res.Passed = false
		res.Error = err.Error()
		logger.Warn(ctx, "test case execution failed", zap.Int("index", res.Index), zap.Error(err))
		return
	}
	if out == nil {
		out = &model.ExecutionResult{}
	}

	res.State = model.CaseCompleted
	res.Result = out
	res.Actual = Normalize(model.StringValue(out.Stdout))
	res.Passed = Compare(res.Actual, res.TestCase.Expected)
	res.TimeSec = parseSeconds(out.Time)
	if out.Memory != nil {
		res.MemoryKB = int64(*out.Memory)
	}
}

// Normalize unifies line endings and trims surrounding whitespace.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// Compare reports whether actual matches expected after normalization.
func Compare(actual, expected string) bool {
	return Normalize(actual) == Normalize(expected)
}

// Summarize aggregates resolved results.
func Summarize(results []model.TestResult) model.ResultsSummary {
	s := model.ResultsSummary{TotalTests: len(results)}
	for _, res := range results {
		if res.Passed {
			s.PassedTests++
		}
		s.TotalTimeSec += res.TimeSec
		s.TotalMemory += res.MemoryKB
	}
	s.FailedTests = s.TotalTests - s.PassedTests
	if s.TotalTests > 0 {
		s.SuccessRate = round2(float64(s.PassedTests) / float64(s.TotalTests) * 100)
	}
	s.TotalTimeMs = int64(math.Round(s.TotalTimeSec * 1000))
	s.TotalTimeSec = round3(s.TotalTimeSec)
	return s
}

func parseSeconds(t *string) float64 {
	if t == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*t), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
