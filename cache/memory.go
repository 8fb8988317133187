// Package cache provides response caches for the gateway.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/ineyio/aigate"
)

// Memory is a thread-safe LRU cache with per-entry TTL. Expired entries are
// dropped lazily on Get or by CleanupExpired.
type Memory struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List
	now      func() time.Time

	hits   int64
	misses int64
}

type entry struct {
	key       string
	result    aigate.GenerationResult
	expiresAt time.Time
}

var _ aigate.Cache = (*Memory)(nil)

// MemoryOption configures Memory.
type MemoryOption func(*Memory)

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an LRU cache holding at most capacity entries.
// Capacity below 1 is treated as 1.
func NewMemory(capacity int, opts ...MemoryOption) *Memory {
	if capacity < 1 {
		capacity = 1
	}
	m := &Memory{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewMemoryFromConfig creates an LRU cache sized by cfg.Capacity, falling
// back to aigate.DefaultCacheCapacity when it is unset.
func NewMemoryFromConfig(cfg aigate.CacheConfig, opts ...MemoryOption) *Memory {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = aigate.DefaultCacheCapacity
	}
	return NewMemory(capacity, opts...)
}

// Get returns a live entry and marks it most recently used.
func (m *Memory) Get(_ context.Context, fingerprint string) (aigate.GenerationResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[fingerprint]
	if !ok {
		m.misses++
		return aigate.GenerationResult{}, false
	}

	e := elem.Value.(*entry)
	if !m.now().Before(e.expiresAt) {
		m.remove(elem)
		m.misses++
		return aigate.GenerationResult{}, false
	}

	m.order.MoveToFront(elem)
	m.hits++
	return e.result, true
}

// Put stores a result for ttl, evicting the least recently used entry when
// full. A non-positive ttl stores nothing.
func (m *Memory) Put(_ context.Context, fingerprint string, result aigate.GenerationResult, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiresAt := m.now().Add(ttl)

	if elem, ok := m.items[fingerprint]; ok {
		m.order.MoveToFront(elem)
		e := elem.Value.(*entry)
		e.result = result
		e.expiresAt = expiresAt
		return nil
	}

	elem := m.order.PushFront(&entry{key: fingerprint, result: result, expiresAt: expiresAt})
	m.items[fingerprint] = elem

	if m.order.Len() > m.capacity {
		if oldest := m.order.Back(); oldest != nil {
			m.remove(oldest)
		}
	}
	return nil
}

// CleanupExpired removes all expired entries and returns how many were
// removed.
func (m *Memory) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0

	var prev *list.Element
	for elem := m.order.Back(); elem != nil; elem = prev {
		prev = elem.Prev()
		if !now.Before(elem.Value.(*entry).expiresAt) {
			m.remove(elem)
			removed++
		}
	}
	return removed
}

// Stats reports cache occupancy and hit counts.
type Stats struct {
	Capacity int
	Size     int
	Hits     int64
	Misses   int64
}

// Stats returns current statistics.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		Capacity: m.capacity,
		Size:     m.order.Len(),
		Hits:     m.hits,
		Misses:   m.misses,
	}
}

func (m *Memory) remove(elem *list.Element) {
	m.order.Remove(elem)
	delete(m.items, elem.Value.(*entry).key)
}
