package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Identity errors
// 13000-13299: Execution request errors
// 13300-13399: Judging backend errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError   ErrorCode = 10001
	InvalidParams         ErrorCode = 10002
	NotFound              ErrorCode = 10003
	Unauthorized          ErrorCode = 10004
	Forbidden             ErrorCode = 10005
	TooManyRequests       ErrorCode = 10006
	ServiceUnavailable    ErrorCode = 10007
	Timeout               ErrorCode = 10008
	RequestEntityTooLarge ErrorCode = 10009

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Identity Errors (11000-11999) ==========

	TokenExpired ErrorCode = 11003
	TokenInvalid ErrorCode = 11004

	// ========== Execution Errors (13000-13299) ==========

	CodeTooLarge         ErrorCode = 13002
	LanguageNotSupported ErrorCode = 13003
	QuotaExceeded        ErrorCode = 13010
	DangerousCode        ErrorCode = 13011
	TooManyTestCases     ErrorCode = 13012
	CustomInputTooLarge  ErrorCode = 13201

	// ========== Judging Backend Errors (13300-13399) ==========

	BackendInvalidParams ErrorCode = 13300
	BackendAuthRequired  ErrorCode = 13301
	BackendForbidden     ErrorCode = 13302
	BackendRateLimited   ErrorCode = 13303
	BackendUnavailable   ErrorCode = 13304
	BackendUnknown       ErrorCode = 13305
	MalformedResponse    ErrorCode = 13306
	BackendTimeout       ErrorCode = 13307
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:               "Success",
	InternalServerError:   "Internal server error",
	InvalidParams:         "Invalid parameters",
	NotFound:              "Resource not found",
	Unauthorized:          "Unauthorized access",
	Forbidden:             "Access forbidden",
	TooManyRequests:       "Too many requests, please try again later",
	ServiceUnavailable:    "Service temporarily unavailable",
	Timeout:               "Request timeout",
	RequestEntityTooLarge: "Request body is too large",

	// Cache
	CacheError: "Cache operation failed",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Identity
	TokenExpired: "Token has expired",
	TokenInvalid: "Invalid token",

	// Execution
	CodeTooLarge:         "Code is too large",
	LanguageNotSupported: "Programming language not supported",
	QuotaExceeded:        "Execution quota exceeded",
	DangerousCode:        "Potentially dangerous code detected",
	TooManyTestCases:     "Too many test cases",
	CustomInputTooLarge:  "Custom input is too large",

	// Judging backend
	BackendInvalidParams: "Judging service rejected the submission parameters",
	BackendAuthRequired:  "Judging service authentication failed",
	BackendForbidden:     "Judging service denied access",
	BackendRateLimited:   "Judging service rate limit reached, please try again later",
	BackendUnavailable:   "Judging service is unavailable",
	BackendUnknown:       "Judging service returned an unexpected error",
	MalformedResponse:    "Judging service returned a malformed response",
	BackendTimeout:       "Judging service did not respond in time",
}

// errorLabels are the short machine-friendly labels written in the "error" field.
var errorLabels = map[ErrorCode]string{
	InternalServerError:   "InternalError",
	InvalidParams:         "InvalidParameters",
	NotFound:              "NotFound",
	Unauthorized:          "AuthRequired",
	Forbidden:             "Forbidden",
	TooManyRequests:       "RateLimited",
	ServiceUnavailable:    "ServiceUnavailable",
	Timeout:               "Timeout",
	RequestEntityTooLarge: "PayloadTooLarge",
	ValidationFailed:      "ValidationError",
	TokenExpired:          "InvalidToken",
	TokenInvalid:          "InvalidToken",
	CodeTooLarge:          "ValidationError",
	LanguageNotSupported:  "UnsupportedLanguage",
	QuotaExceeded:         "QuotaExceeded",
	DangerousCode:         "ValidationError",
	TooManyTestCases:      "ValidationError",
	CustomInputTooLarge:   "ValidationError",
	BackendInvalidParams:  "BackendInvalidParameters",
	BackendAuthRequired:   "BackendAuthRequired",
	BackendForbidden:      "BackendForbidden",
	BackendRateLimited:    "BackendRateLimited",
	BackendUnavailable:    "BackendUnavailable",
	BackendUnknown:        "BackendError",
	MalformedResponse:     "MalformedResponse",
	BackendTimeout:        "BackendTimeout",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// Label returns the short error label used in API responses.
func (c ErrorCode) Label() string {
	if label, ok := errorLabels[c]; ok {
		return label
	}
	return "InternalError"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c == TokenExpired, c == TokenInvalid:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound:
		return 404
	case c == RequestEntityTooLarge:
		return 413
	case c == TooManyRequests, c == QuotaExceeded:
		return 429
	case c == ServiceUnavailable, c == BackendRateLimited:
		return 503
	case c == Timeout, c == BackendTimeout:
		return 504
	case c >= 13300 && c < 13400: // Judging backend errors
		return 502
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c >= 13000 && c < 13300: // Request-level execution errors
		return 400
	case c == InvalidParams:
		return 400
	default:
		return 500
	}
}

// IsServerSide reports whether the code describes a failure the caller did not cause.
func (c ErrorCode) IsServerSide() bool {
	return c.HTTPStatus() >= 500
}
