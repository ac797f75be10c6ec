package cache

import (
	"context"
	"time"
)

// Cache defines the counter-store backend operations used by the gateway.
// Implementations must make Incr atomic across concurrent callers.
type Cache interface {
	BasicOps
	KeyOps

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// BasicOps defines basic key-value operations
type BasicOps interface {
	// Get retrieves the value for the given key, "" when the key is absent
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair with optional TTL
	// If ttl is 0, the key will not expire
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// SetNX sets the value only if the key does not exist (atomic operation)
	// Returns true if the key was set, false if it already existed
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) error

	// Expire sets a timeout on a key
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL returns the remaining time to live of a key
	// Returns a non-positive duration when the key is missing or has no expiry
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Incr increments the integer value of a key by one
	Incr(ctx context.Context, key string) (int64, error)
}

// KeyOps defines keyspace iteration
type KeyOps interface {
	// Scan returns every key matching the glob pattern without blocking the server
	Scan(ctx context.Context, match string) ([]string, error)
}
