package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"judgegate/internal/common/cache"
)

const defaultRedisOpTimeout = 200 * time.Millisecond

// RedisCounterStore keeps counters in Redis so limits hold across gateway instances.
type RedisCounterStore struct {
	cache     cache.Cache
	opTimeout time.Duration
}

var _ CounterStore = (*RedisCounterStore)(nil)

func NewRedisCounterStore(c cache.Cache, opTimeout time.Duration) *RedisCounterStore {
	if opTimeout <= 0 {
		opTimeout = defaultRedisOpTimeout
	}
	return &RedisCounterStore{cache: c, opTimeout: opTimeout}
}

// Increment opens the window with SETNX and falls back to INCR once it exists.
// A key that lost its expiry (crash between INCR and EXPIRE) gets the window re-applied.
func (s *RedisCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s.cache == nil {
		return 0, 0, errors.New("counter cache is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if window <= 0 {
		count, err := s.cache.Incr(ctx, key)
		return count, 0, err
	}

	acquired, err := s.cache.SetNX(ctx, key, 1, window)
	if err != nil {
		return 0, 0, err
	}
	if acquired {
		return 1, window, nil
	}

	count, err := s.cache.Incr(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	ttl, err := s.cache.TTL(ctx, key)
	if err != nil {
		return count, window, nil
	}
	if ttl <= 0 {
		_ = s.cache.Expire(ctx, key, window)
		ttl = window
	}
	return count, ttl, nil
}

func (s *RedisCounterStore) Get(ctx context.Context, key string) (int64, error) {
	if s.cache == nil {
		return 0, errors.New("counter cache is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	raw, err := s.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (s *RedisCounterStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if s.cache == nil {
		return 0, errors.New("counter cache is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.cache.TTL(ctx, key)
}

func (s *RedisCounterStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	if s.cache == nil {
		return errors.New("counter cache is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.cache.Set(ctx, key, value, ttl)
}

func (s *RedisCounterStore) Delete(ctx context.Context, keys ...string) error {
	if s.cache == nil {
		return errors.New("counter cache is nil")
	}
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.cache.Del(ctx, keys...)
}

// Keys walks the keyspace with SCAN; it is meant for maintenance jobs, not the request path.
func (s *RedisCounterStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s.cache == nil {
		return nil, errors.New("counter cache is nil")
	}
	return s.cache.Scan(ctx, prefix+"*")
}
