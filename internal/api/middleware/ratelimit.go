package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/wlocate/wlocate/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Default rate limits. Every lookup costs one upstream request, so lookups
// are limited tighter than reads of stored data.
var (
	// LookupRateLimit applies to single BSSID lookups (60 req/min).
	LookupRateLimit = RateLimitConfig{RequestLimit: 60, WindowLength: time.Minute}

	// BatchRateLimit applies to multi-BSSID lookups (20 req/min).
	BatchRateLimit = RateLimitConfig{RequestLimit: 20, WindowLength: time.Minute}

	// StandardRateLimit applies to reads that stay local (100 req/min).
	StandardRateLimit = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}
)

// RateLimitByIP creates a rate limiter keyed by client IP. Run chi's RealIP
// middleware first when behind a proxy.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceeded(cfg)),
	)
}

// RateLimitByClient creates a rate limiter keyed by the authenticated client,
// falling back to the IP for anonymous requests.
func RateLimitByClient(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyByClientOrIP),
		httprate.WithLimitHandler(rateLimitExceeded(cfg)),
	)
}

func keyByClientOrIP(r *http.Request) (string, error) {
	if clientID := GetClientID(r.Context()); clientID != "" {
		return "client:" + clientID, nil
	}
	return httprate.KeyByRealIP(r)
}

// rateLimitExceeded writes an RFC7807 problem with a Retry-After of one window.
func rateLimitExceeded(cfg RateLimitConfig) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Seconds()))
	return func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), "rate limit exceeded, retry later")
		problem.Instance = r.URL.Path
		w.Header().Set("Retry-After", retryAfter)
		problem.Write(w)
	}
}
