package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Limit types registered by RegisterDefaultLimits
const (
	LimitAnalyticsBatch = "analytics_batch"
	LimitGatewayControl = "gateway_control"
	LimitGatewayWS      = "gateway_ws"
)

type service struct {
	store   Store
	logger  *slog.Logger
	limits  map[string]Limit
	limitsM sync.RWMutex
}

// NewService creates a new rate limiting service
func NewService(store Store, logger *slog.Logger) Service {
	return &service{
		store:  store,
		logger: logger,
		limits: make(map[string]Limit),
	}
}

// RegisterLimit adds or updates a rate limit configuration
func (s *service) RegisterLimit(limitType string, limit Limit) error {
	if limitType == "" || limit.Rate <= 0 || limit.Period <= 0 || limit.BurstSize < 0 {
		return ErrInvalidLimit
	}

	s.limitsM.Lock()
	defer s.limitsM.Unlock()

	s.limits[limitType] = limit
	return nil
}

// Allow checks if an operation should be allowed
func (s *service) Allow(ctx context.Context, key LimitKey) (*LimitStatus, error) {
	if key.Type == "" {
		return nil, ErrInvalidKey
	}

	limit := s.GetLimit(key.Type)
	if limit.Rate == 0 {
		s.logger.Warn("no rate limit configured for type",
			"type", key.Type,
		)
		return &LimitStatus{Limit: limit}, nil
	}

	count, reset, err := s.store.Increment(ctx, key, limit)
	if err != nil {
		s.logger.Error("rate limit check failed",
			"error", err,
			"type", key.Type,
			"endpoint", key.Endpoint,
		)
		return nil, err
	}

	status := &LimitStatus{
		Limit:     limit,
		Count:     count,
		Remaining: limit.Capacity() - count,
		Reset:     reset,
	}
	if status.Remaining < 0 {
		status.Remaining = 0
	}

	s.logger.Debug("rate limit check",
		"type", key.Type,
		"count", count,
		"limit", limit.Rate,
		"burst", limit.BurstSize,
		"endpoint", key.Endpoint,
	)

	if count > limit.Capacity() {
		return status, ErrLimitExceeded
	}
	return status, nil
}

// GetLimit returns the configured limit for a key type
func (s *service) GetLimit(limitType string) Limit {
	s.limitsM.RLock()
	defer s.limitsM.RUnlock()

	return s.limits[limitType]
}

// Reset clears rate limit counters for a key
func (s *service) Reset(ctx context.Context, key LimitKey) error {
	if key.Type == "" {
		return ErrInvalidKey
	}

	if err := s.store.Reset(ctx, key); err != nil {
		s.logger.Error("failed to reset rate limit",
			"error", err,
			"type", key.Type,
			"endpoint", key.Endpoint,
		)
		return err
	}

	return nil
}

// RegisterDefaultLimits configures the standard limits. analyticsRate and
// analyticsPeriod come from the telemetry configuration.
func RegisterDefaultLimits(s Service, analyticsRate int, analyticsPeriod time.Duration) error {
	return errors.Join(
		s.RegisterLimit(LimitAnalyticsBatch, Limit{
			Rate:      analyticsRate,
			Period:    analyticsPeriod,
			BurstSize: analyticsRate / 10,
		}),
		s.RegisterLimit(LimitGatewayControl, Limit{
			Rate:   30,
			Period: time.Minute,
		}),
		s.RegisterLimit(LimitGatewayWS, Limit{
			Rate:      10,
			Period:    time.Minute,
			BurstSize: 5,
		}),
	)
}
