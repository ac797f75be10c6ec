// Package model holds the execution request and result types shared across the pipeline.
package model

// ExecutionRequest is one submission to run, scoped to a single HTTP request.
type ExecutionRequest struct {
	SourceCode     string `json:"sourceCode"`
	Language       string `json:"language"`
	Stdin          string `json:"stdin,omitempty"`
	ExpectedOutput string `json:"expectedOutput,omitempty"`
}

// Status is the backend verdict. The gateway only interprets it, never invents one.
type Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// ExecutionResult is what the judging backend returns for one submission.
// Output fields stay nil when the backend omits them.
type ExecutionResult struct {
	Token         string  `json:"token,omitempty"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message,omitempty"`
	Status        Status  `json:"status"`
	Time          *string `json:"time"`
	Memory        *int    `json:"memory"`
}

// TestCase is one (input, expected output) pair.
type TestCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// CaseState tracks a test case through Queued -> Dispatched -> Completed|Failed.
type CaseState string

const (
	CaseQueued     CaseState = "queued"
	CaseDispatched CaseState = "dispatched"
	CaseCompleted  CaseState = "completed"
	CaseFailed     CaseState = "failed"
)

// TestResult is the verdict for one test case, in input order. Index is 1-based.
type TestResult struct {
	Index    int              `json:"index"`
	TestCase TestCase         `json:"testCase"`
	Result   *ExecutionResult `json:"result,omitempty"`
	Actual   string           `json:"actual"`
	Passed   bool             `json:"passed"`
	State    CaseState        `json:"state"`
	Error    string           `json:"error,omitempty"`
	TimeSec  float64          `json:"time"`
	MemoryKB int64            `json:"memory"`
}

// ResultsSummary aggregates a batch once every case is resolved.
type ResultsSummary struct {
	TotalTests   int     `json:"totalTests"`
	PassedTests  int     `json:"passedTests"`
	FailedTests  int     `json:"failedTests"`
	SuccessRate  float64 `json:"successRate"`
	TotalTimeSec float64 `json:"totalTime"`
	TotalTimeMs  int64   `json:"totalTimeMs"`
	TotalMemory  int64   `json:"totalMemory"`
}

// StringValue dereferences an optional output field.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// TestsRequest is a batch submission: one program, many test cases.
type TestsRequest struct {
	Code      string     `json:"code"`
	Language  string     `json:"language"`
	TestCases []TestCase `json:"testCases"`
}
