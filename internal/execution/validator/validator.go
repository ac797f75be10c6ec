// Package validator rejects execution requests before anything is dispatched.
package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"judgegate/internal/execution/language"
	"judgegate/internal/execution/model"
	pkgerrors "judgegate/pkg/errors"
)

const (
	DefaultMaxCodeSize  = 100_000
	DefaultMaxStdinSize = 10_000
	DefaultMaxTestCases = 50

	maxEchoedValue = 100
)

// Config holds the size ceilings, measured in characters.
type Config struct {
	MaxCodeSize  int
	MaxStdinSize int
	MaxTestCases int
}

// Validator checks every rule independently and reports all failures.
type Validator struct {
	cfg      Config
	registry *language.Registry
	denylist *Denylist
}

func New(cfg Config, registry *language.Registry, denylist *Denylist) *Validator {
	if cfg.MaxCodeSize <= 0 {
		cfg.MaxCodeSize = DefaultMaxCodeSize
	}
	if cfg.MaxStdinSize <= 0 {
		cfg.MaxStdinSize = DefaultMaxStdinSize
	}
	if cfg.MaxTestCases <= 0 {
		cfg.MaxTestCases = DefaultMaxTestCases
	}
	if registry == nil {
		registry = language.Default()
	}
	if denylist == nil {
		denylist = DefaultDenylist()
	}
	return &Validator{cfg: cfg, registry: registry, denylist: denylist}
}

// Config returns the effective limits.
func (v *Validator) Config() Config {
	return v.cfg
}

// Validate checks a single execution request.
func (v *Validator) Validate(req model.ExecutionRequest) []pkgerrors.FieldError {
	var errs []pkgerrors.FieldError

	codeLen := utf8.RuneCountInString(req.SourceCode)
	switch {
	case strings.TrimSpace(req.SourceCode) == "":
		errs = append(errs, fieldError("sourceCode", "Source code is required", ""))
	case codeLen > v.cfg.MaxCodeSize:
		errs = append(errs, fieldError("sourceCode",
			fmt.Sprintf("Source code exceeds maximum size of %d characters", v.cfg.MaxCodeSize), req.SourceCode))
	}

	switch {
	case req.Language == "":
		errs = append(errs, fieldError("language", "Language is required", ""))
	case !v.registry.IsAllowed(req.Language):
		errs = append(errs, fieldError("language", fmt.Sprintf("Language %q is not supported", req.Language), req.Language))
	}

	for _, violation := range v.denylist.Scan(req.SourceCode) {
		errs = append(errs, fieldError("sourceCode",
			fmt.Sprintf("Potentially dangerous code detected: %s (%s)", violation.Rule, violation.Category), violation.Match))
	}

	if utf8.RuneCountInString(req.Stdin) > v.cfg.MaxStdinSize {
		errs = append(errs, fieldError("stdin",
			fmt.Sprintf("Input exceeds maximum size of %d characters", v.cfg.MaxStdinSize), req.Stdin))
	}
	if utf8.RuneCountInString(req.ExpectedOutput) > v.cfg.MaxStdinSize {
		errs = append(errs, fieldError("expectedOutput",
			fmt.Sprintf("Expected output exceeds maximum size of %d characters", v.cfg.MaxStdinSize), req.ExpectedOutput))
	}
	return errs
}

// ValidateTestCases checks batch size and per-case sizes. An empty batch is valid.
func (v *Validator) ValidateTestCases(cases []model.TestCase) []pkgerrors.FieldError {
	var errs []pkgerrors.FieldError
	if len(cases) > v.cfg.MaxTestCases {
		errs = append(errs, fieldError("testCases",
			fmt.Sprintf("At most %d test cases are allowed per request", v.cfg.MaxTestCases), ""))
	}
	for i, tc := range cases {
		if utf8.RuneCountInString(tc.Input) > v.cfg.MaxStdinSize {
			errs = append(errs, fieldError(fmt.Sprintf("testCases[%d].input", i),
				fmt.Sprintf("Input exceeds maximum size of %d characters", v.cfg.MaxStdinSize), tc.Input))
		}
		if utf8.RuneCountInString(tc.Expected) > v.cfg.MaxStdinSize {
			errs = append(errs, fieldError(fmt.Sprintf("testCases[%d].expected", i),
				fmt.Sprintf("Expected output exceeds maximum size of %d characters", v.cfg.MaxStdinSize), tc.Expected))
		}
	}
	return errs
}

// AsError converts field errors to a ValidationFailed error, nil when there are none.
func AsError(errs []pkgerrors.FieldError) error {
	if len(errs) == 0 {
		return nil
	}
	return pkgerrors.ValidationError(errs)
}

func fieldError(field, message, value string) pkgerrors.FieldError {
	return pkgerrors.FieldError{Field: field, Message: message, Value: truncate(value, maxEchoedValue)}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
