package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	pkgerrors "judgegate/pkg/errors"
	"judgegate/pkg/utils/logger"
	"judgegate/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns panics into the standard JSON 500 body.
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && err == http.ErrAbortHandler {
				panic(rec)
			}
			logger.Error(c.Request.Context(), "panic recovered",
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.AbortWithError(c, pkgerrors.InternalError(fmt.Errorf("panic: %v", rec)))
		}()
		c.Next()
	}
}

// NotFoundHandler answers unknown routes in the standard error shape.
func NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.ErrorWithCode(c, pkgerrors.NotFound, "Route not found")
	}
}
