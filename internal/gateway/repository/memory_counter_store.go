package repository

import (
	"container/list"
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultMemoryCounterCapacity = 100_000

type counterEntry struct {
	key       string
	value     int64
	expiresAt time.Time
}

// MemoryCounterStore is a bounded LRU of counters with per-key expiry.
// Every operation holds one mutex, which makes Increment atomic.
// When the capacity is exceeded the least recently touched counter is evicted.
type MemoryCounterStore struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List
	maxSize int
	now     func() time.Time
}

var _ CounterStore = (*MemoryCounterStore)(nil)

// MemoryOption configures a MemoryCounterStore
type MemoryOption func(*MemoryCounterStore)

// WithClock replaces time.Now, used by tests to move across windows.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryCounterStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryCounterStore(maxSize int, opts ...MemoryOption) *MemoryCounterStore {
	if maxSize <= 0 {
		maxSize = defaultMemoryCounterCapacity
	}
	s := &MemoryCounterStore{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryCounterStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry := s.lookup(key, now)
	if entry == nil {
		entry = s.insert(key, now, window)
	}
	entry.value++
	return entry.value, remaining(entry, now), nil
}

func (s *MemoryCounterStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry := s.lookup(key, s.now()); entry != nil {
		return entry.value, nil
	}
	return 0, nil
}

func (s *MemoryCounterStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry := s.lookup(key, now); entry != nil {
		return remaining(entry, now), nil
	}
	return 0, nil
}

func (s *MemoryCounterStore) Set(_ context.Context, key string, value int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if elem, ok := s.items[key]; ok {
		s.removeElement(elem)
	}
	entry := s.insert(key, now, ttl)
	entry.value = value
	return nil
}

func (s *MemoryCounterStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if elem, ok := s.items[key]; ok {
			s.removeElement(elem)
		}
	}
	return nil
}

func (s *MemoryCounterStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var keys []string
	for key, elem := range s.items {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if expired(elem.Value.(*counterEntry), now) {
			s.removeElement(elem)
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len reports the number of stored counters, including expired ones not yet pruned.
func (s *MemoryCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// lookup returns the live entry for key, dropping it when expired. Caller holds mu.
func (s *MemoryCounterStore) lookup(key string, now time.Time) *counterEntry {
	elem, ok := s.items[key]
	if !ok {
		return nil
	}
	entry := elem.Value.(*counterEntry)
	if expired(entry, now) {
		s.removeElement(elem)
		return nil
	}
	s.order.MoveToFront(elem)
	return entry
}

func (s *MemoryCounterStore) insert(key string, now time.Time, ttl time.Duration) *counterEntry {
	entry := &counterEntry{key: key}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	s.items[key] = s.order.PushFront(entry)
	if len(s.items) > s.maxSize {
		s.evictOldest()
	}
	return entry
}

func (s *MemoryCounterStore) evictOldest() {
	elem := s.order.Back()
	if elem == nil {
		return
	}
	s.removeElement(elem)
}

func (s *MemoryCounterStore) removeElement(elem *list.Element) {
	entry := elem.Value.(*counterEntry)
	delete(s.items, entry.key)
	s.order.Remove(elem)
}

func expired(entry *counterEntry, now time.Time) bool {
	return !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt)
}

func remaining(entry *counterEntry, now time.Time) time.Duration {
	if entry.expiresAt.IsZero() {
		return 0
	}
	return entry.expiresAt.Sub(now)
}
