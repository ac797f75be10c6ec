package judgeclient

import (
	"context"
	"encoding/base64"
	"strings"

	"judgegate/internal/execution/model"
	"judgegate/pkg/utils/logger"

	"go.uber.org/zap"
)

// DecodeResult base64-decodes the text fields of r in place.
// A field that fails to decode keeps its raw value.
func DecodeResult(ctx context.Context, r *model.ExecutionResult) *model.ExecutionResult {
	if r == nil {
		return nil
	}
	r.Stdout = decodeField(ctx, "stdout", r.Stdout)
	r.Stderr = decodeField(ctx, "stderr", r.Stderr)
	r.CompileOutput = decodeField(ctx, "compile_output", r.CompileOutput)
	r.Message = decodeField(ctx, "message", r.Message)
	return r
}

func decodeField(ctx context.Context, name string, value *string) *string {
	if value == nil || *value == "" {
		return value
	}
	decoded, err := DecodeBase64(*value)
	if err != nil {
		logger.Warn(ctx, "base64 decode failed, keeping raw output", zap.String("field", name), zap.Error(err))
		return value
	}
	return &decoded
}

// DecodeBase64 decodes standard base64, tolerating the line breaks some backends insert.
func DecodeBase64(s string) (string, error) {
	cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(s)
	raw, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// EncodeBase64 encodes s with standard base64.
func EncodeBase64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
