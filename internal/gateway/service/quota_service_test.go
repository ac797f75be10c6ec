package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"judgegate/internal/gateway/repository"
	"judgegate/internal/gateway/service"
)

func TestQuotaServiceConcurrentLogExecution(t *testing.T) {
	store := repository.NewMemoryCounterStore(1024)
	quota := service.NewQuotaService(store, service.DefaultQuotaLimits())
	const m = 50

	var wg sync.WaitGroup
	for i := 0; i < m; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			quota.LogExecution(context.Background(), "user-1")
		}()
	}
	wg.Wait()

	usage := quota.CheckQuota(context.Background(), "user-1")
	if usage.TotalExecutions != m || usage.DailyExecutions != m || usage.MonthlyExecutions != m {
		t.Fatalf("expected %d in every window, got %+v", m, usage)
	}
	if usage.LastExecution == nil {
		t.Fatalf("expected last execution timestamp")
	}
}

func TestQuotaServiceExceededAndWarning(t *testing.T) {
	store := repository.NewMemoryCounterStore(1024)
	quota := service.NewQuotaService(store, service.QuotaLimits{Daily: 10, Monthly: 100, WarningThreshold: 0.8})
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		quota.LogExecution(ctx, "")
	}
	usage := quota.CheckQuota(ctx, "")
	if usage.Identity != service.AnonymousIdentity {
		t.Fatalf("expected anonymous identity, got %q", usage.Identity)
	}
	if !usage.QuotaWarning || usage.QuotaExceeded {
		t.Fatalf("expected warning only at 8/10, got %+v", usage)
	}

	quota.LogExecution(ctx, "")
	quota.LogExecution(ctx, "")
	usage = quota.CheckQuota(ctx, "")
	if !usage.QuotaExceeded {
		t.Fatalf("expected quota exceeded at 10/10, got %+v", usage)
	}
	remaining := quota.Remaining(usage)
	if remaining.Daily != 0 || remaining.Monthly != 90 || remaining.Total != -1 {
		t.Fatalf("unexpected remaining: %+v", remaining)
	}
}

func TestQuotaServiceDailyRollover(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 5, 31, 23, 59, 0, 0, time.UTC))
	store := repository.NewMemoryCounterStore(1024)
	quota := service.NewQuotaService(store, service.DefaultQuotaLimits(), service.WithQuotaClock(clock.Now))
	ctx := context.Background()

	quota.LogExecution(ctx, "u")
	clock.Advance(2 * time.Minute)
	quota.LogExecution(ctx, "u")

	usage := quota.CheckQuota(ctx, "u")
	if usage.DailyExecutions != 1 || usage.MonthlyExecutions != 1 || usage.TotalExecutions != 2 {
		t.Fatalf("unexpected usage after rollover: %+v", usage)
	}
}

func TestQuotaServiceCleanupAndReset(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	store := repository.NewMemoryCounterStore(1024)
	quota := service.NewQuotaService(store, service.DefaultQuotaLimits(), service.WithQuotaClock(func() time.Time { return now }))
	ctx := context.Background()

	seed := map[string]int64{
		"quota:daily:u1:2026-05-01":  3, // older than 30 days
		"quota:daily:u1:2026-06-01":  2,
		"quota:monthly:u1:2025-05":   7, // older than 12 months
		"quota:monthly:u1:2025-07":   1,
		"quota:monthly:u1:2026-06":   5,
		"quota:daily:bad:not-a-date": 1,
	}
	for key, value := range seed {
		if err := store.Set(ctx, key, value, 0); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	removed, err := quota.CleanupOldData(ctx)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if v, _ := store.Get(ctx, "quota:daily:u1:2026-05-01"); v != 0 {
		t.Fatalf("stale daily bucket survived")
	}
	if v, _ := store.Get(ctx, "quota:monthly:u1:2025-07"); v != 1 {
		t.Fatalf("recent monthly bucket removed")
	}

	cleared, err := quota.ResetDailyQuota(ctx)
	if err != nil || cleared != 2 {
		t.Fatalf("expected 2 daily buckets cleared, got %d err=%v", cleared, err)
	}
	if keys, _ := store.Keys(ctx, "quota:monthly:"); len(keys) != 2 {
		t.Fatalf("reset must not touch monthly buckets, got %v", keys)
	}
}

func TestQuotaServiceStoreFailureDegradesToZero(t *testing.T) {
	quota := service.NewQuotaService(failingStore{}, service.DefaultQuotaLimits())
	quota.LogExecution(context.Background(), "u1")
	usage := quota.CheckQuota(context.Background(), "u1")
	if usage.QuotaExceeded || usage.TotalExecutions != 0 {
		t.Fatalf("expected zero usage on failure, got %+v", usage)
	}
}
