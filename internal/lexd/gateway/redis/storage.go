// Package redis provides Redis-backed gateway bucket storage
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/wrale/wrale-lexdesk/internal/lexd/gateway"
)

// DefaultPrefix namespaces gateway keys
const DefaultPrefix = "lexd:gateway:"

var _ gateway.Storage = (*Storage)(nil)

// Storage keeps each bucket in a hash and the bucket names in a sorted set
// ordered by creation
type Storage struct {
	client redis.UniversalClient
	prefix string
}

// NewStorage creates a storage. An empty prefix uses DefaultPrefix.
func NewStorage(client redis.UniversalClient, prefix string) *Storage {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Storage{client: client, prefix: prefix}
}

func (s *Storage) namesKey() string { return s.prefix + "buckets" }

func (s *Storage) seqKey() string { return s.prefix + "seq" }

func (s *Storage) bucketKey(name string) string { return s.prefix + "bucket:" + name }

func (s *Storage) Open(ctx context.Context, name string) (gateway.Bucket, error) {
	_, err := s.client.ZScore(ctx, s.namesKey(), name).Result()
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil):
		seq, err := s.client.Incr(ctx, s.seqKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("open bucket %s: %w", name, err)
		}
		if err := s.client.ZAddNX(ctx, s.namesKey(), redis.Z{Score: float64(seq), Member: name}).Err(); err != nil {
			return nil, fmt.Errorf("open bucket %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("open bucket %s: %w", name, err)
	}
	return &bucket{s: s, name: name}, nil
}

func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	names, err := s.client.ZRange(ctx, s.namesKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return names, nil
}

func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	pipe := s.client.TxPipeline()
	removed := pipe.ZRem(ctx, s.namesKey(), name)
	pipe.Del(ctx, s.bucketKey(name))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("delete bucket %s: %w", name, err)
	}
	return removed.Val() > 0, nil
}

func (s *Storage) Match(ctx context.Context, key string) (*gateway.StoredResponse, bool, error) {
	names, err := s.Keys(ctx)
	if err != nil {
		return nil, false, err
	}
	for _, name := range names {
		b := &bucket{s: s, name: name}
		resp, ok, err := b.Match(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return resp, true, nil
		}
	}
	return nil, false, nil
}

type bucket struct {
	s    *Storage
	name string
}

func (b *bucket) Name() string { return b.name }

func (b *bucket) Put(ctx context.Context, key string, resp *gateway.StoredResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if err := b.s.client.HSet(ctx, b.s.bucketKey(b.name), key, data).Err(); err != nil {
		return fmt.Errorf("store %s in %s: %w", key, b.name, err)
	}
	return nil
}

func (b *bucket) Match(ctx context.Context, key string) (*gateway.StoredResponse, bool, error) {
	data, err := b.s.client.HGet(ctx, b.s.bucketKey(b.name), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("match %s in %s: %w", key, b.name, err)
	}

	var resp gateway.StoredResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	return &resp, true, nil
}

func (b *bucket) Keys(ctx context.Context) ([]string, error) {
	keys, err := b.s.client.HKeys(ctx, b.s.bucketKey(b.name)).Result()
	if err != nil {
		return nil, fmt.Errorf("list keys of %s: %w", b.name, err)
	}
	sort.Strings(keys)
	return keys, nil
}
