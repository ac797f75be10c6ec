package controller

import (
	"context"

	"judgegate/internal/execution/model"
	"judgegate/internal/execution/runner"
	execservice "judgegate/internal/execution/service"
	"judgegate/internal/gateway/middleware"
	pkgerrors "judgegate/pkg/errors"
	"judgegate/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ExecutionRunner is the orchestration the execution routes depend on.
type ExecutionRunner interface {
	Run(ctx context.Context, caller execservice.Caller, req model.ExecutionRequest) (*model.ExecutionResult, error)
	RunTests(ctx context.Context, caller execservice.Caller, source, language string, cases []model.TestCase) (runner.Report, error)
}

// ExecutionController handles code submission endpoints.
type ExecutionController struct {
	executions ExecutionRunner
}

func NewExecutionController(executions ExecutionRunner) *ExecutionController {
	return &ExecutionController{executions: executions}
}

// RunCode executes one program and returns the backend result with decoded text fields.
func (h *ExecutionController) RunCode(c *gin.Context) {
	req, ok := middleware.RunCodeRequest(c)
	if !ok {
		response.Error(c, pkgerrors.BadRequest("Invalid request parameters"))
		return
	}
	result, err := h.executions.Run(c.Request.Context(), callerOf(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ExecuteWithTests runs the program against every test case.
func (h *ExecutionController) ExecuteWithTests(c *gin.Context) {
	req, ok := middleware.TestsRequest(c)
	if !ok {
		response.Error(c, pkgerrors.BadRequest("Invalid request parameters"))
		return
	}
	report, err := h.executions.RunTests(c.Request.Context(), callerOf(c), req.Code, req.Language, req.TestCases)
	if err != nil {
		response.Error(c, err)
		return
	}

	views := make([]CaseView, 0, len(report.Results))
	for _, res := range report.Results {
		views = append(views, CaseView{
			Input:    res.TestCase.Input,
			Expected: res.TestCase.Expected,
			Actual:   res.Actual,
			Passed:   res.Passed,
		})
	}
	response.Success(c, TestsResponse{Results: views, Summary: report.Summary})
}

func callerOf(c *gin.Context) execservice.Caller {
	return execservice.Caller{UserID: middleware.UserID(c)}
}
