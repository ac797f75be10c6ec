// Package reporter records an audit trail of executions. Recording never fails the caller.
package reporter

import (
	"time"
	"unicode/utf8"

	"judgegate/internal/execution/language"
	"judgegate/internal/execution/model"
	pkgerrors "judgegate/pkg/errors"

	"github.com/google/uuid"
)

const (
	EndpointRunCode          = "run-code"
	EndpointExecuteWithTests = "execute-with-tests"

	StatusError = "Error"

	maxStoredOutput = 64 * 1024
)

// ExecutionLog is one append-only audit record.
type ExecutionLog struct {
	ID              string    `json:"id"`
	Identity        string    `json:"identity"`
	UserID          string    `json:"userId,omitempty"`
	Endpoint        string    `json:"endpoint"`
	Language        string    `json:"language"`
	CodeLength      int       `json:"codeLength"`
	ExecutionTimeMs int64     `json:"executionTimeMs"`
	MemoryUsageKB   int64     `json:"memoryUsageKB"`
	Status          string    `json:"status"`
	Stdout          *string   `json:"stdout,omitempty"`
	Stderr          *string   `json:"stderr,omitempty"`
	CompileOutput   *string   `json:"compileOutput,omitempty"`
	TestCasesPassed *int      `json:"testCasesPassed,omitempty"`
	TestCasesTotal  *int      `json:"testCasesTotal,omitempty"`
	SuccessRate     *float64  `json:"successRate,omitempty"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Subject identifies who ran what.
type Subject struct {
	Identity   string
	UserID     string
	Language   string
	SourceCode string
}

func newLog(s Subject, endpoint string) ExecutionLog {
	return ExecutionLog{
		ID:         uuid.NewString(),
		Identity:   s.Identity,
		UserID:     s.UserID,
		Endpoint:   endpoint,
		Language:   language.Normalize(s.Language),
		CodeLength: utf8.RuneCountInString(s.SourceCode),
		CreatedAt:  time.Now().UTC(),
	}
}

// FromResult builds the record for a single execution. err wins over result.
func FromResult(s Subject, result *model.ExecutionResult, err error) ExecutionLog {
	log := newLog(s, EndpointRunCode)
	if err != nil {
		log.Status = StatusError
		log.ErrorMessage = pkgerrors.GetError(err).Error()
		return log
	}
	if result == nil {
		log.Status = StatusError
		return log
	}
	log.Status = result.Status.Description
	log.Stdout = clip(result.Stdout)
	log.Stderr = clip(result.Stderr)
	log.CompileOutput = clip(result.CompileOutput)
	if result.Time != nil {
		log.ExecutionTimeMs = secondsToMs(*result.Time)
	}
	if result.Memory != nil {
		log.MemoryUsageKB = int64(*result.Memory)
	}
	return log
}

// FromSummary builds the record for a test batch.
func FromSummary(s Subject, summary model.ResultsSummary) ExecutionLog {
	log := newLog(s, EndpointExecuteWithTests)
	passed, total, rate := summary.PassedTests, summary.TotalTests, summary.SuccessRate
	log.TestCasesPassed = &passed
	log.TestCasesTotal = &total
	log.SuccessRate = &rate
	log.ExecutionTimeMs = summary.TotalTimeMs
	log.MemoryUsageKB = summary.TotalMemory
	switch {
	case total > 0 && passed == total:
		log.Status = "Passed"
	default:
		log.Status = "Failed"
	}
	return log
}

func clip(s *string) *string {
	if s == nil || len(*s) <= maxStoredOutput {
		return s
	}
	cut := (*s)[:maxStoredOutput]
	for !utf8.ValidString(cut) && len(cut) > 0 {
		cut = cut[:len(cut)-1]
	}
	return &cut
}
