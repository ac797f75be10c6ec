package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"judgegate/internal/execution/model"
	"judgegate/internal/execution/validator"
	pkgerrors "judgegate/pkg/errors"
	"judgegate/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const (
	runCodeRequestKey = "run_code_request"
	testsRequestKey   = "tests_request"
)

// ValidateRunCodeMiddleware decodes and validates a run-code body before the handler sees it.
func ValidateRunCodeMiddleware(v *validator.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.ExecutionRequest
		if err := decodeBody(c, &req); err != nil {
			response.AbortWithError(c, err)
			return
		}
		if errs := v.Validate(req); len(errs) > 0 {
			response.AbortWithError(c, validator.AsError(errs))
			return
		}
		c.Set(runCodeRequestKey, req)
		c.Next()
	}
}

type testsBody struct {
	Code      string          `json:"code"`
	Language  string          `json:"language"`
	TestCases json.RawMessage `json:"testCases"`
}

// ValidateTestsMiddleware decodes and validates an execute-with-tests body.
// testCases must be present and be a JSON array; an empty array is valid.
func ValidateTestsMiddleware(v *validator.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body testsBody
		if err := decodeBody(c, &body); err != nil {
			response.AbortWithError(c, err)
			return
		}
		raw := bytes.TrimSpace(body.TestCases)
		if len(raw) == 0 || raw[0] != '[' {
			response.AbortWithError(c, validator.AsError([]pkgerrors.FieldError{{
				Field:   "testCases",
				Message: "testCases must be an array",
			}}))
			return
		}
		var cases []model.TestCase
		if err := json.Unmarshal(raw, &cases); err != nil {
			response.AbortWithError(c, validator.AsError([]pkgerrors.FieldError{{
				Field:   "testCases",
				Message: "testCases must be an array of {input, expected} objects",
			}}))
			return
		}

		errs := renameField(v.Validate(model.ExecutionRequest{SourceCode: body.Code, Language: body.Language}), "sourceCode", "code")
		errs = append(errs, v.ValidateTestCases(cases)...)
		if len(errs) > 0 {
			response.AbortWithError(c, validator.AsError(errs))
			return
		}
		if cases == nil {
			cases = []model.TestCase{}
		}
		c.Set(testsRequestKey, model.TestsRequest{Code: body.Code, Language: body.Language, TestCases: cases})
		c.Next()
	}
}

// RunCodeRequest returns the body validated by ValidateRunCodeMiddleware.
func RunCodeRequest(c *gin.Context) (model.ExecutionRequest, bool) {
	v, ok := c.Get(runCodeRequestKey)
	if !ok {
		return model.ExecutionRequest{}, false
	}
	req, ok := v.(model.ExecutionRequest)
	return req, ok
}

// TestsRequest returns the body validated by ValidateTestsMiddleware.
func TestsRequest(c *gin.Context) (model.TestsRequest, bool) {
	v, ok := c.Get(testsRequestKey)
	if !ok {
		return model.TestsRequest{}, false
	}
	req, ok := v.(model.TestsRequest)
	return req, ok
}

func decodeBody(c *gin.Context, dst any) error {
	if c.Request.Body == nil {
		return pkgerrors.BadRequest("Request body is required")
	}
	dec := json.NewDecoder(c.Request.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return pkgerrors.BadRequest("Request body is required")
		}
		return pkgerrors.Wrapf(err, pkgerrors.InvalidParams, "Request body must be valid JSON")
	}
	return nil
}

func renameField(errs []pkgerrors.FieldError, from, to string) []pkgerrors.FieldError {
	for i := range errs {
		if errs[i].Field == from {
			errs[i].Field = to
		}
	}
	return errs
}
