package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/varunkainth/airpollutionmap/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Default rate limits.
var (
	// AggregationRateLimit applies to endpoints that fan out to the
	// pollution provider.
	AggregationRateLimit = RateLimitConfig{
		RequestLimit: 30,
		WindowLength: time.Minute,
	}

	// ViewportRateLimit applies per session to viewport updates. Updates are
	// debounced, so this only caps abusive clients.
	ViewportRateLimit = RateLimitConfig{
		RequestLimit: 240,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to everything else.
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 120,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP limits requests per client IP. X-Forwarded-For is honored
// via chi's RealIP middleware.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitExceeded(cfg)),
	)
}

// RateLimitBySession limits requests per map session and client IP. Use it
// on routes with an {id} parameter.
func RateLimitBySession(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP, keyBySession),
		httprate.WithLimitHandler(limitExceeded(cfg)),
	)
}

func keyBySession(r *http.Request) (string, error) {
	return "session:" + chi.URLParam(r, "id"), nil
}

// limitExceeded writes a problem response when a limit is hit. httprate does
// not expose the reset time, so Retry-After is the window length.
func limitExceeded(cfg RateLimitConfig) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Seconds()))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", retryAfter)
		reject(w, r, models.KindTooManyRequests, "Rate limit exceeded. Please try again later.")
	}
}
