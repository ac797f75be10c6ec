package repository

import (
	"context"
	"time"
)

// CounterStore holds the fixed-window counters behind rate limiting and quota tracking.
// Increment must be atomic per key: concurrent callers never lose an update.
type CounterStore interface {
	// Increment adds one to key and returns the new count with the remaining window.
	// The window starts at the first increment; window 0 means the counter never expires.
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)

	// Get returns the current count, 0 when the key is absent or expired
	Get(ctx context.Context, key string) (int64, error)

	// TTL returns the remaining window of key, 0 when absent or unbounded
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Set overwrites key with value; ttl 0 keeps it forever
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error

	// Delete removes the given keys
	Delete(ctx context.Context, keys ...string) error

	// Keys lists live keys starting with prefix
	Keys(ctx context.Context, prefix string) ([]string, error)
}
