package gateway

import (
	"context"
	"sort"
	"sync"
)

var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps buckets in process memory
type MemoryStorage struct {
	mu      sync.RWMutex
	order   []string
	buckets map[string]*memoryBucket
}

// NewMemoryStorage creates an empty storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{buckets: make(map[string]*memoryBucket)}
}

func (s *MemoryStorage) Open(_ context.Context, name string) (Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[name]
	if !ok {
		b = &memoryBucket{name: name, entries: make(map[string]*StoredResponse)}
		s.buckets[name] = b
		s.order = append(s.order, name)
	}
	return b, nil
}

func (s *MemoryStorage) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

func (s *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buckets[name]; !ok {
		return false, nil
	}
	delete(s.buckets, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *MemoryStorage) Match(ctx context.Context, key string) (*StoredResponse, bool, error) {
	s.mu.RLock()
	buckets := make([]*memoryBucket, 0, len(s.order))
	for _, n := range s.order {
		buckets = append(buckets, s.buckets[n])
	}
	s.mu.RUnlock()

	for _, b := range buckets {
		if resp, ok, _ := b.Match(ctx, key); ok {
			return resp, true, nil
		}
	}
	return nil, false, nil
}

type memoryBucket struct {
	name    string
	mu      sync.RWMutex
	entries map[string]*StoredResponse
}

func (b *memoryBucket) Name() string { return b.name }

func (b *memoryBucket) Put(_ context.Context, key string, resp *StoredResponse) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = clone(resp)
	return nil
}

func (b *memoryBucket) Match(_ context.Context, key string) (*StoredResponse, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	resp, ok := b.entries[key]
	if !ok {
		return nil, false, nil
	}
	return clone(resp), true, nil
}

func (b *memoryBucket) Keys(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func clone(r *StoredResponse) *StoredResponse {
	return &StoredResponse{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   append([]byte(nil), r.Body...),
	}
}
