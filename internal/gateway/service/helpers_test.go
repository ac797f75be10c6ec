package service_test

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errStoreDown = errors.New("counter store down")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// failingStore is a CounterStore whose every call fails.
type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errStoreDown
}

func (failingStore) Get(context.Context, string) (int64, error) { return 0, errStoreDown }

func (failingStore) TTL(context.Context, string) (time.Duration, error) { return 0, errStoreDown }

func (failingStore) Set(context.Context, string, int64, time.Duration) error { return errStoreDown }

func (failingStore) Delete(context.Context, ...string) error { return errStoreDown }

func (failingStore) Keys(context.Context, string) ([]string, error) { return nil, errStoreDown }
