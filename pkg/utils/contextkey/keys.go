package contextkey

// key is a private type to avoid context key collisions across packages.
type key string

const (
	TraceID   key = "trace_id"
	RequestID key = "request_id"
	UserID    key = "user_id"
	UserEmail key = "user_email"
	ClientIP  key = "client_ip"
)

// Gin context keys. gin.Context.Set only accepts string keys.
const (
	GinTraceID   = "trace_id"
	GinUserID    = "user_id"
	GinUserEmail = "user_email"
	GinIdentity  = "identity"
)
