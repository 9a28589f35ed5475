// Package ratelimit enforces per-client request budgets on the HTTP surface
package ratelimit

import (
	"context"
	"net/http"
	"time"
)

// LimitKey identifies a specific rate limit
type LimitKey struct {
	Type     string // e.g., "analytics_batch", "gateway_ws"
	Token    string // session id or other unique identifier
	RemoteIP string // remote IP for anonymous limits
	Endpoint string // API endpoint for specific limits
}

// Limit defines the rate limit configuration
type Limit struct {
	// Rate is the number of operations allowed
	Rate int

	// Period is the time window for the rate
	Period time.Duration

	// BurstSize allows a short burst over the rate (optional)
	BurstSize int
}

// Capacity is the number of operations allowed in one window
func (l Limit) Capacity() int {
	return l.Rate + l.BurstSize
}

// LimitStatus describes the state of a limit after a check
type LimitStatus struct {
	Limit     Limit
	Count     int
	Remaining int
	Reset     time.Time
}

// Store handles rate limit state persistence
type Store interface {
	// Increment adds one to the counter for key and returns the new count
	// together with the time the current window ends
	Increment(ctx context.Context, key LimitKey, limit Limit) (int, time.Time, error)

	// Reset clears a rate limit counter
	Reset(ctx context.Context, key LimitKey) error
}

// Service manages rate limiting for the application
type Service interface {
	// Allow counts an operation and reports ErrLimitExceeded once the window is spent
	Allow(ctx context.Context, key LimitKey) (*LimitStatus, error)

	// GetLimit returns the configured limit for a key type
	GetLimit(limitType string) Limit

	// RegisterLimit adds or updates the limit for a key type
	RegisterLimit(limitType string, limit Limit) error

	// Reset clears rate limit counters for a key
	Reset(ctx context.Context, key LimitKey) error
}

// RateLimitOptions configures the HTTP middleware
type RateLimitOptions struct {
	// LimitType selects the registered limit
	LimitType string

	// GetToken extracts a per-client token from the request (optional)
	GetToken func(r *http.Request) string

	// SkipLimitCheck bypasses limiting for matching requests (optional)
	SkipLimitCheck func(r *http.Request) bool
}

// Error types for rate limiting
var (
	ErrLimitExceeded = NewError("RATE_LIMITED", "rate limit exceeded")
	ErrStoreError    = NewError("STORE_ERROR", "rate limit store error")
	ErrInvalidLimit  = NewError("INVALID_LIMIT", "invalid rate limit configuration")
	ErrInvalidKey    = NewError("INVALID_KEY", "invalid rate limit key")
)

// Error represents a rate limiting error
type Error struct {
	Code    string
	Message string
}

func (e Error) Error() string {
	return e.Message
}

// NewError creates a new rate limit error
func NewError(code string, message string) Error {
	return Error{
		Code:    code,
		Message: message,
	}
}
