// Package judgeclient talks to a Judge0-compatible judging backend.
package judgeclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"judgegate/internal/execution/language"
	"judgegate/internal/execution/model"
	pkgerrors "judgegate/pkg/errors"
	"judgegate/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxCodeSize  = 100000
	defaultMaxStdinSize = 10000
	maxResponseBytes    = 4 << 20
	maxDetailLength     = 200
)

// TransportConfig tunes the pooled HTTP transport toward the backend.
type TransportConfig struct {
	MaxIdleConns          int           `yaml:"maxIdleConns"`
	MaxIdleConnsPerHost   int           `yaml:"maxIdleConnsPerHost"`
	IdleConnTimeout       time.Duration `yaml:"idleConnTimeout"`
	ResponseHeaderTimeout time.Duration `yaml:"responseHeaderTimeout"`
	TLSHandshakeTimeout   time.Duration `yaml:"tlsHandshakeTimeout"`
	DialTimeout           time.Duration `yaml:"dialTimeout"`
}

// Config configures the backend client.
type Config struct {
	BaseURL string
	// AuthToken is sent as X-Auth-Token to self-hosted backends.
	AuthToken string
	// APIKey and APIHost select RapidAPI-style authentication.
	APIKey        string
	APIHost       string
	Timeout       time.Duration
	DisableBase64 bool
	MaxCodeSize   int
	MaxStdinSize  int
	Transport     TransportConfig
}

// Client submits one program per call. It never retries.
type Client struct {
	cfg        Config
	registry   *language.Registry
	httpClient *http.Client
	endpoint   string
}

// New creates a backend client.
func New(cfg Config, registry *language.Registry) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("judge base url is required")
	}
	if registry == nil {
		registry = language.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxCodeSize <= 0 {
		cfg.MaxCodeSize = defaultMaxCodeSize
	}
	if cfg.MaxStdinSize <= 0 {
		cfg.MaxStdinSize = defaultMaxStdinSize
	}
	cfg.BaseURL = base

	useBase64 := strconv.FormatBool(!cfg.DisableBase64)
	return &Client{
		cfg:        cfg,
		registry:   registry,
		httpClient: &http.Client{Transport: newTransport(cfg.Transport)},
		endpoint:   base + "/submissions?base64_encoded=" + useBase64 + "&wait=true",
	}, nil
}

// NewWithHTTPClient creates a client over a caller-provided http.Client.
func NewWithHTTPClient(cfg Config, registry *language.Registry, httpClient *http.Client) (*Client, error) {
	c, err := New(cfg, registry)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c, nil
}

func newTransport(cfg TransportConfig) *http.Transport {
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 20
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}
	if cfg.TLSHandshakeTimeout <= 0 {
		cfg.TLSHandshakeTimeout = 5 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}
}

// Preflight runs the local checks Execute applies before anything is sent.
// A nil error means the input would be dispatched.
func (c *Client) Preflight(in ExecuteInput) error {
	_, err := c.prepare(in)
	return err
}

func (c *Client) prepare(in ExecuteInput) (int, error) {
	languageID, err := c.registry.IDFor(in.Language)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(in.SourceCode) == "" {
		return 0, pkgerrors.New(pkgerrors.RequiredFieldEmpty).WithMessage("Source code is required")
	}
	if utf8.RuneCountInString(in.SourceCode) > c.cfg.MaxCodeSize {
		return 0, pkgerrors.Newf(pkgerrors.CodeTooLarge, "Code exceeds maximum size of %d characters", c.cfg.MaxCodeSize)
	}
	if utf8.RuneCountInString(in.Stdin) > c.cfg.MaxStdinSize {
		return 0, pkgerrors.Newf(pkgerrors.CustomInputTooLarge, "Input exceeds maximum size of %d characters", c.cfg.MaxStdinSize)
	}
	if utf8.RuneCountInString(in.ExpectedOutput) > c.cfg.MaxStdinSize {
		return 0, pkgerrors.Newf(pkgerrors.CustomInputTooLarge, "Expected output exceeds maximum size of %d characters", c.cfg.MaxStdinSize)
	}
	return languageID, nil
}

// Execute submits one program and waits for its verdict.
// Text fields of the returned result are already decoded.
func (c *Client) Execute(ctx context.Context, in ExecuteInput) (*model.ExecutionResult, error) {
	languageID, err := c.prepare(in)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(c.buildRequest(in, languageID))
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.InternalServerError)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.InternalServerError)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.setAuthHeaders(req.Header)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, callCtx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.transportError(ctx, callCtx, err)
	}
	logger.Debug(ctx, "judge backend responded",
		zap.Int("status", resp.StatusCode),
		zap.Int("language_id", languageID),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, body)
	}

	result, err := parseResult(body)
	if err != nil {
		return nil, err
	}
	if !c.cfg.DisableBase64 {
		DecodeResult(ctx, result)
	}
	return result, nil
}

func (c *Client) buildRequest(in ExecuteInput, languageID int) submissionRequest {
	req := submissionRequest{
		SourceCode:     in.SourceCode,
		LanguageID:     languageID,
		Stdin:          in.Stdin,
		ExpectedOutput: in.ExpectedOutput,
	}
	if !c.cfg.DisableBase64 {
		req.SourceCode = EncodeBase64(req.SourceCode)
		if req.Stdin != "" {
			req.Stdin = EncodeBase64(req.Stdin)
		}
		if req.ExpectedOutput != "" {
			req.ExpectedOutput = EncodeBase64(req.ExpectedOutput)
		}
	}
	return req
}

func (c *Client) setAuthHeaders(h http.Header) {
	if c.cfg.AuthToken != "" {
		h.Set("X-Auth-Token", c.cfg.AuthToken)
	}
	if c.cfg.APIKey != "" {
		h.Set("X-RapidAPI-Key", c.cfg.APIKey)
	}
	if c.cfg.APIHost != "" {
		h.Set("X-RapidAPI-Host", c.cfg.APIHost)
	}
}

func (c *Client) transportError(ctx, callCtx context.Context, err error) error {
	var netErr net.Error
	if stderrors.Is(callCtx.Err(), context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		logger.Warn(ctx, "judge backend timed out", zap.Duration("timeout", c.cfg.Timeout), zap.Error(err))
		return pkgerrors.Wrap(err, pkgerrors.BackendTimeout)
	}
	logger.Warn(ctx, "judge backend unreachable", zap.Error(err))
	return pkgerrors.Wrap(err, pkgerrors.BackendUnavailable)
}

// statusError maps a non-2xx backend status onto a backend-specific code.
func statusError(status int, body []byte) error {
	var code pkgerrors.ErrorCode
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code = pkgerrors.BackendInvalidParams
	case http.StatusUnauthorized:
		code = pkgerrors.BackendAuthRequired
	case http.StatusForbidden:
		code = pkgerrors.BackendForbidden
	case http.StatusTooManyRequests:
		code = pkgerrors.BackendRateLimited
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		code = pkgerrors.BackendUnavailable
	default:
		code = pkgerrors.BackendUnknown
	}
	e := pkgerrors.New(code).WithDetail("status", status)
	if detail := errorDetail(body); detail != "" {
		e.WithDetail("detail", detail)
	}
	return e
}

func errorDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Error != "" {
			return truncate(eb.Error)
		}
		if eb.Message != "" {
			return truncate(eb.Message)
		}
	}
	return truncate(strings.TrimSpace(string(body)))
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxDetailLength {
		return s
	}
	return string([]rune(s)[:maxDetailLength]) + "..."
}

// parseResult decodes a 2xx body. A missing or non-numeric status id is malformed.
func parseResult(body []byte) (*model.ExecutionResult, error) {
	var wire submissionResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.MalformedResponse)
	}
	if wire.Status == nil {
		return nil, pkgerrors.New(pkgerrors.MalformedResponse).WithDetail("detail", "missing status")
	}
	statusID, err := strconv.Atoi(strings.TrimSpace(string(wire.Status.ID)))
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.MalformedResponse).WithDetail("detail", "status id is not numeric")
	}

	desc := wire.Status.Description
	if desc == "" {
		desc = StatusDescription(statusID)
	}
	result := &model.ExecutionResult{
		Token:         wire.Token,
		Stdout:        wire.Stdout,
		Stderr:        wire.Stderr,
		CompileOutput: wire.CompileOutput,
		Message:       wire.Message,
		Status:        model.Status{ID: statusID, Description: desc},
	}
	if t, ok := rawScalar(wire.Time); ok {
		result.Time = &t
	}
	if m, ok := rawScalar(wire.Memory); ok {
		if kb, err := strconv.ParseFloat(m, 64); err == nil {
			mem := int(kb)
			result.Memory = &mem
		}
	}
	return result, nil
}

// rawScalar accepts a JSON number or string and returns its text; null yields false.
func rawScalar(raw json.RawMessage) (string, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return "", false
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil || str == "" {
			return "", false
		}
		return str, true
	}
	return s, true
}
