package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type window struct {
	count int
	reset time.Time
}

// MemoryStore keeps fixed-window counters in process memory. It is used when
// no redis instance is configured.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func memoryKey(key LimitKey) string {
	return fmt.Sprintf("%s:%s:%s:%s", key.Type, key.Token, key.RemoteIP, key.Endpoint)
}

// Increment adds one to the counter for key
func (m *MemoryStore) Increment(_ context.Context, key LimitKey, limit Limit) (int, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	k := memoryKey(key)
	w, ok := m.windows[k]
	if !ok || !now.Before(w.reset) {
		w = &window{reset: now.Add(limit.Period)}
		m.windows[k] = w
		m.sweep(now)
	}
	w.count++
	return w.count, w.reset, nil
}

// Reset clears a rate limit counter
func (m *MemoryStore) Reset(_ context.Context, key LimitKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.windows, memoryKey(key))
	return nil
}

// sweep drops expired windows. Caller holds mu.
func (m *MemoryStore) sweep(now time.Time) {
	for k, w := range m.windows {
		if !now.Before(w.reset) {
			delete(m.windows, k)
		}
	}
}
