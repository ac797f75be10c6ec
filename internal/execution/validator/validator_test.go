package validator_test

import (
	"strings"
	"testing"

	"judgegate/internal/execution/model"
	"judgegate/internal/execution/validator"
	pkgerrors "judgegate/pkg/errors"
)

func newValidator() *validator.Validator {
	return validator.New(validator.Config{}, nil, nil)
}

func hasField(errs []pkgerrors.FieldError, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestValidateAcceptsStdinProgram(t *testing.T) {
	errs := newValidator().Validate(model.ExecutionRequest{
		SourceCode: "print(sum(map(int,input().split())))",
		Language:   "python",
		Stdin:      "2 7 11 15\n9",
	})
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %+v", errs)
	}
}

func TestValidateOversizedCode(t *testing.T) {
	v := validator.New(validator.Config{MaxCodeSize: 10}, nil, nil)
	errs := v.Validate(model.ExecutionRequest{SourceCode: strings.Repeat("x", 11), Language: "python"})
	if !hasField(errs, "sourceCode") {
		t.Fatalf("expected sourceCode error, got %+v", errs)
	}
	for _, e := range errs {
		if len(e.Value) > 103 {
			t.Fatalf("echoed value must be truncated, got %d chars", len(e.Value))
		}
	}
}

func TestValidateEchoedValueTruncated(t *testing.T) {
	v := validator.New(validator.Config{MaxCodeSize: 10}, nil, nil)
	errs := v.Validate(model.ExecutionRequest{SourceCode: strings.Repeat("y", 5000), Language: "python"})
	if len(errs) != 1 || len([]rune(errs[0].Value)) != 103 {
		t.Fatalf("expected truncated value, got %+v", errs)
	}
}

func TestValidateDisallowedLanguage(t *testing.T) {
	for _, lang := range []string{"rust", "cobol", "go"} {
		errs := newValidator().Validate(model.ExecutionRequest{SourceCode: "fn main() {}", Language: lang})
		if !hasField(errs, "language") {
			t.Fatalf("%s: expected language error, got %+v", lang, errs)
		}
	}
}

func TestValidateCollectsAllFailures(t *testing.T) {
	v := validator.New(validator.Config{MaxCodeSize: 20, MaxStdinSize: 3}, nil, nil)
	errs := v.Validate(model.ExecutionRequest{
		SourceCode:     "const fs = require('fs'); // padding padding",
		Language:       "brainfuck",
		Stdin:          "12345",
		ExpectedOutput: "12345",
	})
	for _, field := range []string{"sourceCode", "language", "stdin", "expectedOutput"} {
		if !hasField(errs, field) {
			t.Fatalf("expected %s error in %+v", field, errs)
		}
	}
	if len(errs) < 5 {
		t.Fatalf("expected size and denylist errors for sourceCode, got %+v", errs)
	}
}

func TestValidateRequiresFields(t *testing.T) {
	errs := newValidator().Validate(model.ExecutionRequest{})
	if !hasField(errs, "sourceCode") || !hasField(errs, "language") {
		t.Fatalf("expected required-field errors, got %+v", errs)
	}
}

func TestValidateRejectsNodeFS(t *testing.T) {
	errs := newValidator().Validate(model.ExecutionRequest{
		SourceCode: "const fs = require('fs');\nconsole.log(fs.readFileSync('/etc/passwd', 'utf8'));",
		Language:   "javascript",
	})
	if len(errs) == 0 {
		t.Fatalf("expected require('fs') to be rejected")
	}
	if !strings.Contains(errs[0].Message, "dangerous") {
		t.Fatalf("expected dangerous pattern message, got %q", errs[0].Message)
	}
}

func TestValidateTestCases(t *testing.T) {
	v := validator.New(validator.Config{MaxStdinSize: 4, MaxTestCases: 2}, nil, nil)
	if errs := v.ValidateTestCases(nil); len(errs) != 0 {
		t.Fatalf("empty batch must be valid, got %+v", errs)
	}
	errs := v.ValidateTestCases([]model.TestCase{
		{Input: "1", Expected: "1"},
		{Input: "too long", Expected: "1"},
		{Input: "1", Expected: "also too long"},
	})
	for _, field := range []string{"testCases", "testCases[1].input", "testCases[2].expected"} {
		if !hasField(errs, field) {
			t.Fatalf("expected %s error in %+v", field, errs)
		}
	}
}

func TestAsError(t *testing.T) {
	if validator.AsError(nil) != nil {
		t.Fatalf("expected nil for no errors")
	}
	err := validator.AsError([]pkgerrors.FieldError{{Field: "language", Message: "bad"}})
	if pkgerrors.GetCode(err) != pkgerrors.ValidationFailed {
		t.Fatalf("expected ValidationFailed, got %v", err)
	}
}

func TestValidateRejectsBlankSource(t *testing.T) {
	errs := newValidator().Validate(model.ExecutionRequest{SourceCode: "   \n\t", Language: "python"})
	if len(errs) != 1 || errs[0].Field != "sourceCode" || errs[0].Message != "Source code is required" {
		t.Fatalf("expected required sourceCode error, got %+v", errs)
	}
}

func TestValidateAllowsRegexpExec(t *testing.T) {
	errs := newValidator().Validate(model.ExecutionRequest{
		SourceCode: "const m = /(\\d+) (\\d+)/.exec('2 7');\nconsole.log(Number(m[1]) + Number(m[2]));",
		Language:   "javascript",
	})
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %+v", errs)
	}
}
