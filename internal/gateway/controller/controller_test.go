package controller_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"judgegate/internal/execution/judgeclient"
	"judgegate/internal/execution/language"
	"judgegate/internal/execution/model"
	"judgegate/internal/execution/reporter"
	execservice "judgegate/internal/execution/service"
	"judgegate/internal/execution/validator"
	"judgegate/internal/gateway/controller"
	"judgegate/internal/gateway/repository"
	"judgegate/internal/gateway/service"
	pkgerrors "judgegate/pkg/errors"
	"judgegate/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type scriptedExecutor struct {
	mu     sync.Mutex
	calls  int
	stdout string
	err    error
}

func (e *scriptedExecutor) Execute(ctx context.Context, in judgeclient.ExecuteInput) (*model.ExecutionResult, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := e.stdout
	t := "0.020"
	mem := 3000
	return &model.ExecutionResult{Stdout: &out, Time: &t, Memory: &mem, Status: model.Status{ID: 3, Description: "Accepted"}}, nil
}

func (e *scriptedExecutor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type fixture struct {
	router   *gin.Engine
	executor *scriptedExecutor
	registry *prometheus.Registry
}

func newFixture(t *testing.T, exec *scriptedExecutor, opts ...func(*controller.SystemDeps)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryCounterStore(1000)
	rate := service.NewRateLimitService(store)
	quota := service.NewQuotaService(store, service.DefaultQuotaLimits())
	registry := language.Default()

	promRegistry := prometheus.NewRegistry()
	metrics, err := reporter.NewMetricsSink(promRegistry)
	if err != nil {
		t.Fatalf("metrics sink failed: %v", err)
	}
	executions := execservice.NewExecutionService(exec, quota, reporter.New(time.Second, metrics), 4)
	systemDeps := controller.SystemDeps{
		Environment:     "test",
		Registry:        registry,
		RateLimiter:     rate,
		Quota:           quota,
		GeneralPolicy:   service.GeneralPolicy,
		ExecutionPolicy: service.ExecutionPolicy,
	}
	for _, opt := range opts {
		opt(&systemDeps)
	}

	router := controller.NewRouter(controller.RouterConfig{
		FrontendURL:     "http://localhost:3000",
		GeneralPolicy:   service.GeneralPolicy,
		ExecutionPolicy: service.ExecutionPolicy,
	}, controller.RouterDeps{
		Executions:     controller.NewExecutionController(executions),
		System:         controller.NewSystemController(systemDeps),
		Validator:      validator.New(validator.Config{}, registry, validator.DefaultDenylist()),
		RateLimiter:    rate,
		Quota:          quota,
		Identity:       service.NewAuthService("test-secret", ""),
		MetricsHandler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
	})
	return &fixture{router: router, executor: exec, registry: promRegistry}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode failed: %v (%s)", err, w.Body.String())
	}
	return out
}

func TestExecuteWithTestsMismatch(t *testing.T) {
	f := newFixture(t, &scriptedExecutor{stdout: "44\n"})
	w := f.do(http.MethodPost, "/api/execute-with-tests", `{
		"code": "print(sum(map(int,input().split())))",
		"language": "python",
		"testCases": [{"input": "2 7 11 15\n9", "expected": "0 1"}]
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[controller.TestsResponse](t, w)
	if len(resp.Results) != 1 {
		t.Fatalf("expected one result, got %d", len(resp.Results))
	}
	got := resp.Results[0]
	if got.Passed || got.Actual == got.Expected || got.Actual != "44" || got.Input != "2 7 11 15\n9" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if resp.Summary.TotalTests != 1 || resp.Summary.FailedTests != 1 || resp.Summary.SuccessRate != 0 {
		t.Fatalf("unexpected summary: %+v", resp.Summary)
	}
}

func TestExecuteWithTestsEmptyBatch(t *testing.T) {
	f := newFixture(t, &scriptedExecutor{})
	w := f.do(http.MethodPost, "/api/execute-with-tests", `{"code":"print(1)","language":"python","testCases":[]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"results":[]`) {
		t.Fatalf("expected empty results array, got %s", w.Body.String())
	}
	resp := decode[controller.TestsResponse](t, w)
	if resp.Summary.SuccessRate != 0 || f.executor.Calls() != 0 {
		t.Fatalf("unexpected summary %+v or calls %d", resp.Summary, f.executor.Calls())
	}
}

func TestDangerousCodeNeverDispatched(t *testing.T) {
	f := newFixture(t, &scriptedExecutor{})
	w := f.do(http.MethodPost, "/api/run-code", `{"sourceCode":"const fs = require('fs'); console.log(fs.readFileSync('/etc/passwd'))","language":"javascript"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	body := decode[response.ErrorBody](t, w)
	if body.Error != "ValidationError" || !strings.Contains(body.Message, "dangerous") {
		t.Fatalf("unexpected body: %+v", body)
	}
	if f.executor.Calls() != 0 {
		t.Fatalf("executor must not be called, got %d", f.executor.Calls())
	}
}

func TestOversizedCodeNeverDispatched(t *testing.T) {
	f := newFixture(t, &scriptedExecutor{})
	payload, _ := json.Marshal(model.ExecutionRequest{SourceCode: strings.Repeat("a", 100001), Language: "python"})
	w := f.do(http.MethodPost, "/api/run-code", string(payload))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	body := decode[response.ErrorBody](t, w)
	details, ok := body.Details.([]any)
	if !ok || details[0].(map[string]any)["field"] != "sourceCode" {
		t.Fatalf("expected sourceCode field error, got %#v", body.Details)
	}
	if f.executor.Calls() != 0 {
		t.Fatalf("executor must not be called, got %d", f.executor.Calls())
	}
}

func TestRunCodeReturnsResult(t *testing.T) {
	f := newFixture(t, &scriptedExecutor{stdout: "hello\n"})
	w := f.do(http.MethodPost, "/api/run-code", `{"sourceCode":"print('hello')","language":"python"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	result := decode[model.ExecutionResult](t, w)
	if model.StringValue(result.Stdout) != "hello\n" || result.Status.ID != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if w.Header().Get("X-RateLimit-Limit") != "5" || w.Header().Get("X-RateLimit-Remaining") != "4" {
		t.Fatalf("expected execution tier headers, got %v", w.Header())
	}

	metrics := f.do(http.MethodGet, "/metrics", "")
	if !strings.Contains(metrics.Body.String(), `judgegate_execution_total{endpoint="run-code",language="python",status="Accepted"} 1`) {
		t.Fatalf("execution not exported: %s", metrics.Body.String())
	}
}

func TestExecutionRateLimit(t *testing.T) {
	f := newFixture(t, &scriptedExecutor{stdout: "1"})
	body := `{"sourceCode":"print(1)","language":"python"}`
	for i := 0; i < 5; i++ {
		if w := f.do(http.MethodPost, "/api/run-code", body); w.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i+1, w.Code)
		}
	}
	w := f.do(http.MethodPost, "/api/run-code", body)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	resp := decode[response.ErrorBody](t, w)
	if resp.Error != "RateLimited" || resp.RetryAfter < 1 || resp.RetryAfter > 60 {
		t.Fatalf("unexpected body: %+v", resp)
	}
	if f.executor.Calls() != 5 {
		t.Fatalf("expected 5 dispatches, got %d", f.executor.Calls())
	}
}

func TestBackendRateLimitIsDistinct(t *testing.T) {
	f := newFixture(t, &scriptedExecutor{err: pkgerrors.New(pkgerrors.BackendRateLimited)})
	w := f.do(http.MethodPost, "/api/run-code", `{"sourceCode":"print(1)","language":"python"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	body := decode[response.ErrorBody](t, w)
	if body.Error != "BackendRateLimited" || !strings.Contains(body.Message, "Judging service") {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestTestCasesMustBeArray(t *testing.T) {
	f := newFixture(t, &scriptedExecutor{})
	w := f.do(http.MethodPost, "/api/execute-with-tests", `{"code":"print(1)","language":"python","testCases":"nope"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, &scriptedExecutor{})
	w := f.do(http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[controller.HealthResponse](t, w)
	if resp.Status != "healthy" || resp.Environment != "test" || resp.Timestamp == "" {
		t.Fatalf("unexpected health: %+v", resp)
	}
	if w.Header().Get("X-Trace-Id") == "" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("global middleware missing: %v", w.Header())
	}
}

func TestStatsDoesNotConsume(t *testing.T) {
	f := newFixture(t, &scriptedExecutor{stdout: "1"})
	f.do(http.MethodPost, "/api/run-code", `{"sourceCode":"print(1)","language":"python"}`)

	for i := 0; i < 2; i++ {
		w := f.do(http.MethodGet, "/api/stats", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		resp := decode[controller.StatsResponse](t, w)
		if resp.Identity != service.AnonymousIdentity || resp.Authenticated {
			t.Fatalf("unexpected identity: %+v", resp)
		}
		if resp.RateLimits["execution"].Remaining != 4 {
			t.Fatalf("expected 4 executions left, got %+v", resp.RateLimits["execution"])
		}
		if resp.Quota.DailyExecutions != 1 || resp.Quota.Remaining.Daily != 999 || resp.Quota.Remaining.Total != -1 {
			t.Fatalf("unexpected quota: %+v", resp.Quota)
		}
		if len(resp.SupportedLanguages) != 6 {
			t.Fatalf("unexpected languages: %v", resp.SupportedLanguages)
		}
	}
}

type fakeHistory struct {
	identity string
	count    int64
	err      error
}

func (h *fakeHistory) CountByIdentity(ctx context.Context, identity string) (int64, error) {
	h.identity = identity
	return h.count, h.err
}

type fakeCheck struct{ err error }

func (c fakeCheck) Ping(ctx context.Context) error { return c.err }

func TestStatsReportsRecordedExecutions(t *testing.T) {
	history := &fakeHistory{count: 7}
	f := newFixture(t, &scriptedExecutor{}, func(d *controller.SystemDeps) { d.History = history })

	w := f.do(http.MethodGet, "/api/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[controller.StatsResponse](t, w)
	if resp.RecordedExecutions == nil || *resp.RecordedExecutions != 7 {
		t.Fatalf("unexpected recorded executions: %v", resp.RecordedExecutions)
	}
	if history.identity != service.AnonymousIdentity {
		t.Fatalf("history queried for %q", history.identity)
	}
}

func TestStatsOmitsHistoryOnFailure(t *testing.T) {
	history := &fakeHistory{err: errors.New("connection refused")}
	f := newFixture(t, &scriptedExecutor{}, func(d *controller.SystemDeps) { d.History = history })

	w := f.do(http.MethodGet, "/api/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "recordedExecutions") {
		t.Fatalf("failed history should be omitted: %s", w.Body.String())
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]controller.ReadinessCheck
		status int
		want   map[string]string
	}{
		{
			name:   "no dependencies",
			status: http.StatusOK,
			want:   map[string]string{},
		},
		{
			name:   "all reachable",
			checks: map[string]controller.ReadinessCheck{"redis": fakeCheck{}, "mysql": fakeCheck{}},
			status: http.StatusOK,
			want:   map[string]string{"redis": "ok", "mysql": "ok"},
		},
		{
			name:   "broker down",
			checks: map[string]controller.ReadinessCheck{"redis": fakeCheck{}, "kafka": fakeCheck{err: errors.New("dial tcp: refused")}},
			status: http.StatusServiceUnavailable,
			want:   map[string]string{"redis": "ok", "kafka": "dial tcp: refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &scriptedExecutor{}, func(d *controller.SystemDeps) { d.Checks = tt.checks })
			w := f.do(http.MethodGet, "/api/ready", "")
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			resp := decode[controller.ReadyResponse](t, w)
			wantStatus := "ready"
			if tt.status != http.StatusOK {
				wantStatus = "unavailable"
			}
			if resp.Status != wantStatus || len(resp.Checks) != len(tt.want) {
				t.Fatalf("unexpected readiness: %+v", resp)
			}
			for name, v := range tt.want {
				if resp.Checks[name] != v {
					t.Fatalf("check %s: expected %q, got %q", name, v, resp.Checks[name])
				}
			}
		})
	}
}

func TestLanguages(t *testing.T) {
	f := newFixture(t, &scriptedExecutor{})
	resp := decode[controller.LanguagesResponse](t, f.do(http.MethodGet, "/api/languages", ""))
	found := false
	for _, l := range resp.Languages {
		if l.Key == "python" && l.BackendID == 71 {
			found = true
		}
		if l.Key == "rust" {
			t.Fatalf("rust is not allow-listed")
		}
	}
	if !found {
		t.Fatalf("python missing: %+v", resp.Languages)
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, &scriptedExecutor{})
	w := f.do(http.MethodGet, "/api/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if body := decode[response.ErrorBody](t, w); body.Error != "NotFound" {
		t.Fatalf("unexpected body: %+v", body)
	}
}
