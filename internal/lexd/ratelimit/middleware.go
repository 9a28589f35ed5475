package ratelimit

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Middleware creates an HTTP middleware for rate limiting.
// Standard RateLimit-* headers are set on every counted request and
// exhausted windows are answered with 429 and Retry-After. Store failures
// are logged and the request is let through.
func Middleware(service Service, logger *slog.Logger, options RateLimitOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if options.SkipLimitCheck != nil && options.SkipLimitCheck(r) {
				next.ServeHTTP(w, r)
				return
			}

			reqLogger := logger.With("requestId", middleware.GetReqID(r.Context()))
			key := buildKey(r, options)

			status, err := service.Allow(r.Context(), key)
			switch {
			case errors.Is(err, ErrLimitExceeded):
				setRateLimitHeaders(w, status)
				handleLimitExceeded(w, r, status, reqLogger)
				return
			case err != nil:
				reqLogger.Warn("rate limit unavailable, allowing request",
					"error", err,
					"type", options.LimitType,
					"path", r.URL.Path,
				)
			default:
				setRateLimitHeaders(w, status)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// buildKey creates a rate limit key from the request
func buildKey(r *http.Request, options RateLimitOptions) LimitKey {
	key := LimitKey{
		Type:     options.LimitType,
		RemoteIP: realIP(r),
		Endpoint: r.URL.Path,
	}

	if options.GetToken != nil {
		key.Token = options.GetToken(r)
	}

	return key
}

func setRateLimitHeaders(w http.ResponseWriter, status *LimitStatus) {
	if status == nil || status.Limit.Rate == 0 {
		return
	}
	w.Header().Set("RateLimit-Limit", strconv.Itoa(status.Limit.Rate))
	w.Header().Set("RateLimit-Remaining", strconv.Itoa(status.Remaining))
	w.Header().Set("RateLimit-Reset", strconv.FormatInt(status.Reset.Unix(), 10))

	if status.Limit.BurstSize > 0 {
		w.Header().Set("RateLimit-Burst", strconv.Itoa(status.Limit.BurstSize))
	}
}

func handleLimitExceeded(w http.ResponseWriter, r *http.Request, status *LimitStatus, logger *slog.Logger) {
	retryAfter := 1
	if status != nil {
		if secs := int(time.Until(status.Reset).Seconds()); secs > retryAfter {
			retryAfter = secs
		}
	}

	logger.Warn("rate limit exceeded",
		"path", r.URL.Path,
		"method", r.Method,
		"remoteIP", realIP(r),
		"retryAfter", retryAfter,
	)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	fmt.Fprintf(w, `{"error":"rate_limit_exceeded","message":"Too many requests, please retry after %d seconds"}`, retryAfter)
}

// realIP extracts the client IP address from proxy headers or RemoteAddr
func realIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if parts := strings.Split(xff, ","); len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}

	return host
}

// SessionToken keys analytics limits by the X-Session-ID header the
// collector sends with every batch
func SessionToken(r *http.Request) string {
	return r.Header.Get("X-Session-ID")
}

// CommonRateLimiters provides pre-configured rate limit middleware
type CommonRateLimiters struct {
	service Service
	logger  *slog.Logger
}

// NewCommonRateLimiters creates a provider of standard rate limiters
func NewCommonRateLimiters(service Service, logger *slog.Logger) *CommonRateLimiters {
	return &CommonRateLimiters{
		service: service,
		logger:  logger,
	}
}

// AnalyticsLimiter limits batch uploads per session and client IP
func (c *CommonRateLimiters) AnalyticsLimiter() func(http.Handler) http.Handler {
	return Middleware(c.service, c.logger, RateLimitOptions{
		LimitType: LimitAnalyticsBatch,
		GetToken:  SessionToken,
		SkipLimitCheck: func(r *http.Request) bool {
			return r.Method == http.MethodGet
		},
	})
}

// GatewayControlLimiter limits control messages and push triggers
func (c *CommonRateLimiters) GatewayControlLimiter() func(http.Handler) http.Handler {
	return Middleware(c.service, c.logger, RateLimitOptions{
		LimitType: LimitGatewayControl,
	})
}

// WebSocketLimiter limits gateway client connections
func (c *CommonRateLimiters) WebSocketLimiter() func(http.Handler) http.Handler {
	return Middleware(c.service, c.logger, RateLimitOptions{
		LimitType: LimitGatewayWS,
	})
}
