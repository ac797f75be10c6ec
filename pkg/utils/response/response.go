package response

import (
	"net/http"
	"strconv"
	"sync/atomic"

	"judgegate/pkg/errors"
	"judgegate/pkg/utils/contextkey"
	"judgegate/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var hideInternalDetail atomic.Bool

// SetProductionMode toggles suppression of internal error detail in responses.
func SetProductionMode(enabled bool) {
	hideInternalDetail.Store(enabled)
}

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error      string           `json:"error"`
	Code       errors.ErrorCode `json:"code"`
	Message    string           `json:"message"`
	Details    any              `json:"details,omitempty"`
	RetryAfter int              `json:"retryAfter,omitempty"`
	TraceID    string           `json:"traceId,omitempty"`
}

// Success writes data as the response body with status 200
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Error sends an error response
// It automatically extracts error code and message from the error
func Error(c *gin.Context, err error) {
	customErr := errors.GetError(err)
	if customErr == nil {
		customErr = errors.New(errors.InternalServerError)
	}
	status := customErr.Code.HTTPStatus()

	fields := []zap.Field{
		zap.Int("code", int(customErr.Code)),
		zap.Int("status", status),
		zap.String("message", customErr.Error()),
	}
	if customErr.Err != nil {
		fields = append(fields, zap.NamedError("cause", customErr.Err))
	}
	if status >= http.StatusInternalServerError {
		fields = append(fields, zap.String("stack", customErr.Stack))
		logger.Error(c.Request.Context(), "request failed", fields...)
	} else {
		logger.Info(c.Request.Context(), "request rejected", fields...)
	}

	body := buildBody(c, customErr)
	if customErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(customErr.RetryAfter))
	}
	c.JSON(status, body)
}

// ErrorWithCode sends an error response with specific error code
func ErrorWithCode(c *gin.Context, code errors.ErrorCode, message string) {
	e := errors.New(code)
	if message != "" {
		e.Message = message
	}
	Error(c, e)
}

// AbortWithError aborts the request and sends error response
func AbortWithError(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// AbortWithErrorCode aborts the request with error code
func AbortWithErrorCode(c *gin.Context, code errors.ErrorCode, message string) {
	ErrorWithCode(c, code, message)
	c.Abort()
}

func buildBody(c *gin.Context, e *errors.Error) ErrorBody {
	body := ErrorBody{
		Error:      e.Code.Label(),
		Code:       e.Code,
		Message:    e.Error(),
		RetryAfter: e.RetryAfter,
		TraceID:    getTraceID(c),
	}
	switch {
	case len(e.Fields) > 0:
		body.Details = e.Fields
	case len(e.Details) > 0:
		body.Details = e.Details
	}

	if e.Code == errors.InternalServerError {
		if hideInternalDetail.Load() {
			body.Message = errors.InternalServerError.Message()
			body.Details = nil
		} else if e.Err != nil {
			body.Details = map[string]any{"cause": e.Err.Error()}
		}
	}
	return body
}

// getTraceID extracts trace ID from context
func getTraceID(c *gin.Context) string {
	if traceID, ok := c.Get(contextkey.GinTraceID); ok {
		if s, ok := traceID.(string); ok {
			return s
		}
	}
	return ""
}
