package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wlocate/wlocate/internal/api/middleware"
)

// limiter wraps okHandler in mw and returns a function that sends one lookup
// from addr and reports the recorder.
func limiter(mw func(http.Handler) http.Handler, headers map[string]string) func(addr string) *httptest.ResponseRecorder {
	handler := middleware.RequestID(mw(okHandler()))
	return func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/locations/00:11:22:33:44:55", http.NoBody)
		req.RemoteAddr = addr
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}
}

func TestRateLimitByIP_Budget(t *testing.T) {
	send := limiter(middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 3, WindowLength: time.Minute}), nil)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send("10.0.0.1:4000").Code, "request %d", i+1)
	}

	rec := send("10.0.0.1:4001")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "port does not reset the budget")
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send("10.0.0.2:4000").Code, "other addresses keep their own budget")
}

func TestRateLimitByIP_RetryAfterFollowsWindow(t *testing.T) {
	send := limiter(middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: 10 * time.Second}), nil)

	send("198.51.100.9:1")
	rec := send("198.51.100.9:1")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
}

func TestRateLimitByClient(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute}

	t.Run("authenticated client shares one budget", func(t *testing.T) {
		auth := middleware.Auth(stubValidator{subject: "survey-fleet"})
		send := limiter(func(next http.Handler) http.Handler {
			return auth(middleware.RateLimitByClient(cfg)(next))
		}, map[string]string{"Authorization": "Bearer token"})

		assert.Equal(t, http.StatusOK, send("192.0.2.1:1").Code)
		assert.Equal(t, http.StatusOK, send("192.0.2.2:1").Code)
		assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.3:1").Code)
	})

	t.Run("anonymous requests are keyed by address", func(t *testing.T) {
		send := limiter(middleware.RateLimitByClient(cfg), nil)

		assert.Equal(t, http.StatusOK, send("192.0.2.10:1").Code)
		assert.Equal(t, http.StatusOK, send("192.0.2.10:1").Code)
		assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.10:1").Code)
		assert.Equal(t, http.StatusOK, send("192.0.2.11:1").Code)
	})
}

func TestRateLimit_ProblemBody(t *testing.T) {
	send := limiter(middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute}), nil)

	send("203.0.113.1:1")
	rec := send("203.0.113.1:1")

	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "too-many-requests")
	assert.Contains(t, body, "rate limit exceeded")
	assert.Contains(t, body, `"instance":"/v1/locations/00:11:22:33:44:55"`)
	assert.Contains(t, body, `"traceId":"req_`)
}

func TestRateLimit_Presets(t *testing.T) {
	tests := []struct {
		name  string
		cfg   middleware.RateLimitConfig
		limit int
	}{
		{"lookup", middleware.LookupRateLimit, 60},
		{"batch", middleware.BatchRateLimit, 20},
		{"standard", middleware.StandardRateLimit, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.limit, tt.cfg.RequestLimit)
			assert.Equal(t, time.Minute, tt.cfg.WindowLength)
		})
	}
	assert.Less(t, middleware.BatchRateLimit.RequestLimit, middleware.LookupRateLimit.RequestLimit)
}
