// Package redis provides a Redis-backed rate limit store
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wrale/wrale-lexdesk/internal/lexd/ratelimit"
)

// Store implements rate limit storage using Redis
type Store struct {
	client redis.UniversalClient
}

// NewStore creates a new Redis-backed rate limit store
func NewStore(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// keyStr converts a LimitKey to a Redis key
func (s *Store) keyStr(key ratelimit.LimitKey) string {
	return fmt.Sprintf("lexd:rate:%s:%s:%s:%s",
		key.Type,
		key.Token,
		key.RemoteIP,
		key.Endpoint,
	)
}

// Increment adds one to the counter and returns it with the window end
func (s *Store) Increment(ctx context.Context, key ratelimit.LimitKey, limit ratelimit.Limit) (int, time.Time, error) {
	redisKey := s.keyStr(key)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ratelimit.ErrStoreError, err)
	}

	// A fresh key has no expiry yet; start the window now
	remaining := ttl.Val()
	if remaining < 0 {
		if err := s.client.PExpire(ctx, redisKey, limit.Period).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("%w: %v", ratelimit.ErrStoreError, err)
		}
		remaining = limit.Period
	}

	return int(incr.Val()), time.Now().Add(remaining), nil
}

// Reset clears a rate limit counter
func (s *Store) Reset(ctx context.Context, key ratelimit.LimitKey) error {
	err := s.client.Del(ctx, s.keyStr(key)).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ratelimit.ErrStoreError, err)
	}
	return nil
}
