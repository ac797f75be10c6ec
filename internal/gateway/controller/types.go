package controller

import (
	"judgegate/internal/execution/model"
	"judgegate/internal/gateway/service"
)

// CaseView is the per-case projection returned by execute-with-tests.
type CaseView struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
}

// TestsResponse is the execute-with-tests body.
type TestsResponse struct {
	Results []CaseView           `json:"results"`
	Summary model.ResultsSummary `json:"summary"`
}

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status      string  `json:"status"`
	Timestamp   string  `json:"timestamp"`
	Uptime      float64 `json:"uptime"`
	Environment string  `json:"environment"`
}

// ReadyResponse is the readiness body; Checks maps dependency name to "ok" or the failure.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// RateHeadroom is the remaining capacity of one limiter tier.
type RateHeadroom struct {
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
	ResetIn   int `json:"resetIn"`
}

// QuotaView is the caller's quota snapshot.
type QuotaView struct {
	service.QuotaUsage
	Remaining service.QuotaRemaining `json:"remaining"`
	Limits    QuotaLimitsView        `json:"limits"`
}

// QuotaLimitsView mirrors QuotaLimits with JSON names.
type QuotaLimitsView struct {
	Daily            int64   `json:"daily"`
	Monthly          int64   `json:"monthly"`
	Total            int64   `json:"total"`
	WarningThreshold float64 `json:"warningThreshold"`
}

// StatsResponse is the usage snapshot for the caller.
type StatsResponse struct {
	Identity           string                  `json:"identity"`
	Authenticated      bool                    `json:"authenticated"`
	RateLimits         map[string]RateHeadroom `json:"rateLimits"`
	Quota              QuotaView               `json:"quota"`
	SupportedLanguages []string                `json:"supportedLanguages"`
	RecordedExecutions *int64                  `json:"recordedExecutions,omitempty"`
}

// LanguagesResponse lists executable languages.
type LanguagesResponse struct {
	Languages []LanguageView `json:"languages"`
}

type LanguageView struct {
	Key       string `json:"key"`
	BackendID int    `json:"backendId"`
}
