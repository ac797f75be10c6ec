package repository_test

import (
	"sync"
	"testing"
	"time"

	"judgegate/internal/common/cache"
	"judgegate/internal/gateway/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*repository.RedisCounterStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rc, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache failed: %v", err)
	}
	return repository.NewRedisCounterStore(rc, time.Second), mr
}

func TestRedisCounterStoreFixedWindow(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := t.Context()

	count, ttl, err := store.Increment(ctx, "rate:exec:user:u1", time.Minute)
	if err != nil || count != 1 || ttl != time.Minute {
		t.Fatalf("first increment: count=%d ttl=%v err=%v", count, ttl, err)
	}
	mr.FastForward(10 * time.Second)
	count, ttl, err = store.Increment(ctx, "rate:exec:user:u1", time.Minute)
	if err != nil || count != 2 {
		t.Fatalf("second increment: count=%d err=%v", count, err)
	}
	if ttl > 50*time.Second {
		t.Fatalf("window must not be extended, ttl=%v", ttl)
	}

	mr.FastForward(time.Minute)
	count, _, err = store.Increment(ctx, "rate:exec:user:u1", time.Minute)
	if err != nil || count != 1 {
		t.Fatalf("expected fresh window, count=%d err=%v", count, err)
	}
}

func TestRedisCounterStoreRestoresLostExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := t.Context()
	if err := mr.Set("rate:general:ip:1.1.1.1", "7"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	count, ttl, err := store.Increment(ctx, "rate:general:ip:1.1.1.1", 15*time.Minute)
	if err != nil || count != 8 {
		t.Fatalf("count=%d err=%v", count, err)
	}
	if ttl != 15*time.Minute || mr.TTL("rate:general:ip:1.1.1.1") != 15*time.Minute {
		t.Fatalf("expected expiry to be re-applied, ttl=%v", mr.TTL("rate:general:ip:1.1.1.1"))
	}
}

func TestRedisCounterStoreConcurrentIncrement(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := t.Context()
	const workers = 40

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := store.Increment(ctx, "quota:total:u1", 0); err != nil {
				t.Errorf("increment failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "quota:total:u1")
	if err != nil || got != workers {
		t.Fatalf("expected %d, got %d err=%v", workers, got, err)
	}
}

func TestRedisCounterStoreKeysAndDelete(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := t.Context()
	_ = store.Set(ctx, "quota:daily:u1:2026-01-01", 3, 0)
	_ = store.Set(ctx, "quota:daily:u1:2026-03-01", 1, 0)
	_ = store.Set(ctx, "quota:last:u1", 1700000000000, 0)

	keys, err := store.Keys(ctx, "quota:daily:")
	if err != nil || len(keys) != 2 {
		t.Fatalf("keys=%v err=%v", keys, err)
	}
	if err := store.Delete(ctx, keys...); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if got, _ := store.Get(ctx, "quota:daily:u1:2026-03-01"); got != 0 {
		t.Fatalf("expected deleted key to read 0, got %d", got)
	}
	if got, _ := store.Get(ctx, "quota:last:u1"); got != 1700000000000 {
		t.Fatalf("unexpected last timestamp %d", got)
	}
}

func TestRedisCounterStoreNilCache(t *testing.T) {
	store := repository.NewRedisCounterStore(nil, 0)
	if _, _, err := store.Increment(t.Context(), "k", time.Second); err == nil {
		t.Fatalf("expected error for nil cache")
	}
}
