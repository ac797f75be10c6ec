package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"

	"judgegate/internal/execution/validator"
	pkgerrors "judgegate/pkg/errors"
	"judgegate/pkg/utils/logger"
	"judgegate/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const DefaultMaxBodyBytes int64 = 1 << 20

// BodyLimitMiddleware buffers the request body and rejects it with 413 past maxBytes.
func BodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			abortTooLarge(c, maxBytes)
			return
		}
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
		_ = c.Request.Body.Close()
		if err != nil {
			response.AbortWithError(c, pkgerrors.BadRequest("Failed to read request body"))
			return
		}
		if int64(len(body)) > maxBytes {
			abortTooLarge(c, maxBytes)
			return
		}
		setBody(c, body)
		c.Next()
	}
}

func abortTooLarge(c *gin.Context, maxBytes int64) {
	response.AbortWithError(c, pkgerrors.New(pkgerrors.RequestEntityTooLarge).
		WithDetail("limit", strconv.FormatInt(maxBytes, 10)+" bytes"))
}

// SanitizeMiddleware drops proxy-spoofable headers and prototype-polluting JSON keys.
func SanitizeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		validator.StripSpoofableHeaders(c.Request.Header)
		if c.Request.Body == nil || c.Request.Body == http.NoBody || !isJSON(c.ContentType()) {
			c.Next()
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		_ = c.Request.Body.Close()
		if err != nil {
			response.AbortWithError(c, pkgerrors.BadRequest("Failed to read request body"))
			return
		}
		cleaned, err := validator.SanitizeJSON(body)
		if err != nil {
			logger.Warn(c.Request.Context(), "body sanitization failed", zap.Error(err))
			cleaned = body
		}
		setBody(c, cleaned)
		c.Next()
	}
}

func setBody(c *gin.Context, body []byte) {
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	c.Request.ContentLength = int64(len(body))
}

func isJSON(contentType string) bool {
	return contentType == "" || strings.HasSuffix(strings.ToLower(contentType), "json")
}
