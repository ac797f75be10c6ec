package judgeclient_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"judgegate/internal/execution/judgeclient"
	"judgegate/internal/execution/model"
	pkgerrors "judgegate/pkg/errors"
)

func newClient(t *testing.T, handler http.HandlerFunc, mutate func(*judgeclient.Config)) *judgeclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := judgeclient.Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := judgeclient.New(cfg, nil)
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	return c
}

func encoded(s string) string {
	return judgeclient.EncodeBase64(s)
}

func TestExecuteEncodesRequestAndDecodesResult(t *testing.T) {
	var got map[string]any
	var headers http.Header
	var query string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		query = r.URL.RawQuery
		if r.URL.Path != "/submissions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"token":"t1","stdout":"`+encoded("hello\n")+`","stderr":null,"compile_output":null,"message":null,"status":{"id":3,"description":"Accepted"},"time":"0.012","memory":3200}`)
	}, func(cfg *judgeclient.Config) {
		cfg.AuthToken = "secret"
		cfg.APIKey = "key"
		cfg.APIHost = "judge0-ce.p.rapidapi.com"
	})

	result, err := client.Execute(context.Background(), judgeclient.ExecuteInput{
		SourceCode: "print(input())",
		Language:   "Python",
		Stdin:      "hello",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if query != "base64_encoded=true&wait=true" {
		t.Fatalf("unexpected query: %s", query)
	}
	if got["source_code"] != encoded("print(input())") || got["stdin"] != encoded("hello") {
		t.Fatalf("payload not base64 encoded: %#v", got)
	}
	if got["language_id"] != float64(71) {
		t.Fatalf("unexpected language id: %#v", got["language_id"])
	}
	if headers.Get("X-Auth-Token") != "secret" || headers.Get("X-RapidAPI-Key") != "key" || headers.Get("X-RapidAPI-Host") == "" {
		t.Fatalf("auth headers missing: %v", headers)
	}
	if model.StringValue(result.Stdout) != "hello\n" {
		t.Fatalf("stdout not decoded: %q", model.StringValue(result.Stdout))
	}
	if result.Stderr != nil {
		t.Fatalf("expected nil stderr")
	}
	if result.Status.ID != judgeclient.StatusAccepted || model.StringValue(result.Time) != "0.012" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Memory == nil || *result.Memory != 3200 {
		t.Fatalf("unexpected memory: %v", result.Memory)
	}
}

func TestExecuteMapsBackendStatus(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   pkgerrors.ErrorCode
		http   int
	}{
		{http.StatusBadRequest, `{"error":"language_id is invalid"}`, pkgerrors.BackendInvalidParams, 502},
		{http.StatusUnauthorized, `{"message":"bad token"}`, pkgerrors.BackendAuthRequired, 502},
		{http.StatusForbidden, `forbidden`, pkgerrors.BackendForbidden, 502},
		{http.StatusTooManyRequests, `{"message":"You have exceeded the DAILY quota"}`, pkgerrors.BackendRateLimited, 503},
		{http.StatusInternalServerError, ``, pkgerrors.BackendUnavailable, 502},
		{http.StatusTeapot, `{}`, pkgerrors.BackendUnknown, 502},
	}
	for _, tc := range cases {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, tc.body)
		}, nil)
		_, err := client.Execute(context.Background(), judgeclient.ExecuteInput{SourceCode: "x=1", Language: "python"})
		e := pkgerrors.GetError(err)
		if e == nil || e.Code != tc.want {
			t.Fatalf("status %d: expected code %d, got %v", tc.status, tc.want, err)
		}
		if e.Code.HTTPStatus() != tc.http {
			t.Fatalf("status %d: expected http %d, got %d", tc.status, tc.http, e.Code.HTTPStatus())
		}
		if e.Details["status"] != tc.status {
			t.Fatalf("status %d: missing status detail: %#v", tc.status, e.Details)
		}
	}
}

func TestExecuteRateLimitDetail(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"message":"You have exceeded the DAILY quota"}`)
	}, nil)
	_, err := client.Execute(context.Background(), judgeclient.ExecuteInput{SourceCode: "x=1", Language: "python"})
	e := pkgerrors.GetError(err)
	if e.Details["detail"] != "You have exceeded the DAILY quota" {
		t.Fatalf("unexpected detail: %#v", e.Details)
	}
	if pkgerrors.Is(err, pkgerrors.TooManyRequests) {
		t.Fatalf("backend throttling must not reuse the gateway rate-limit code")
	}
}

func TestExecuteMalformedResponse(t *testing.T) {
	bodies := []string{
		`not json`,
		`{"stdout":"aGk="}`,
		`{"status":{"id":"three"}}`,
	}
	for _, body := range bodies {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		}, nil)
		_, err := client.Execute(context.Background(), judgeclient.ExecuteInput{SourceCode: "x=1", Language: "python"})
		if !pkgerrors.Is(err, pkgerrors.MalformedResponse) {
			t.Fatalf("body %q: expected MalformedResponse, got %v", body, err)
		}
	}
}

func TestExecuteTimeout(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, func(cfg *judgeclient.Config) {
		cfg.Timeout = 50 * time.Millisecond
	})
	_, err := client.Execute(context.Background(), judgeclient.ExecuteInput{SourceCode: "x=1", Language: "python"})
	if !pkgerrors.Is(err, pkgerrors.BackendTimeout) {
		t.Fatalf("expected BackendTimeout, got %v", err)
	}
	if pkgerrors.GetCode(err).HTTPStatus() != http.StatusGatewayTimeout {
		t.Fatalf("expected 504 mapping")
	}
}

func TestExecuteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, err := judgeclient.New(judgeclient.Config{BaseURL: url}, nil)
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	_, err = client.Execute(context.Background(), judgeclient.ExecuteInput{SourceCode: "x=1", Language: "python"})
	if !pkgerrors.Is(err, pkgerrors.BackendUnavailable) {
		t.Fatalf("expected BackendUnavailable, got %v", err)
	}
}

func TestExecuteRevalidatesInput(t *testing.T) {
	calls := 0
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	}, func(cfg *judgeclient.Config) {
		cfg.MaxCodeSize = 10
		cfg.MaxStdinSize = 3
	})

	_, err := client.Execute(context.Background(), judgeclient.ExecuteInput{SourceCode: "x=1", Language: "brainfuck"})
	if !pkgerrors.Is(err, pkgerrors.LanguageNotSupported) {
		t.Fatalf("expected LanguageNotSupported, got %v", err)
	}
	_, err = client.Execute(context.Background(), judgeclient.ExecuteInput{SourceCode: strings.Repeat("x", 11), Language: "python"})
	if !pkgerrors.Is(err, pkgerrors.CodeTooLarge) {
		t.Fatalf("expected CodeTooLarge, got %v", err)
	}
	_, err = client.Execute(context.Background(), judgeclient.ExecuteInput{SourceCode: "x=1", Language: "python", Stdin: "abcd"})
	if !pkgerrors.Is(err, pkgerrors.CustomInputTooLarge) {
		t.Fatalf("expected CustomInputTooLarge, got %v", err)
	}
	_, err = client.Execute(context.Background(), judgeclient.ExecuteInput{SourceCode: "x=1", Language: "python", ExpectedOutput: strings.Repeat("y", 1000)})
	if !pkgerrors.Is(err, pkgerrors.CustomInputTooLarge) {
		t.Fatalf("expected CustomInputTooLarge for expected output, got %v", err)
	}
	_, err = client.Execute(context.Background(), judgeclient.ExecuteInput{SourceCode: "  \n\t", Language: "python"})
	if !pkgerrors.Is(err, pkgerrors.RequiredFieldEmpty) {
		t.Fatalf("expected RequiredFieldEmpty, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no backend calls, got %d", calls)
	}
}

func TestPreflightMatchesExecuteChecks(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("preflight must not reach the backend")
	}, func(cfg *judgeclient.Config) {
		cfg.MaxStdinSize = 3
	})

	if err := client.Preflight(judgeclient.ExecuteInput{SourceCode: "print(1)", Language: "python", Stdin: "abc"}); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
	cases := map[string]judgeclient.ExecuteInput{
		"blank source":    {SourceCode: " \n", Language: "python"},
		"unknown":         {SourceCode: "x", Language: "cobol"},
		"stdin":           {SourceCode: "x", Language: "python", Stdin: "abcd"},
		"expected output": {SourceCode: "x", Language: "python", ExpectedOutput: "abcd"},
	}
	for name, in := range cases {
		if err := client.Preflight(in); err == nil {
			t.Fatalf("%s: expected preflight error", name)
		}
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := judgeclient.New(judgeclient.Config{}, nil); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}
