package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/skylane/skylane/pkg/api/response"
)

const (
	defaultRateLimitRPS   = 100
	defaultRateLimitBurst = 200
)

// RateLimitOptions configures the request rate limiter.
type RateLimitOptions struct {
	// RPS is the sustained requests per second allowed.
	RPS float64

	// Burst is the maximum burst size allowed.
	Burst int
}

// RateLimit returns a middleware that rejects requests above the configured
// rate with 429. The limit is global, not per client.
func RateLimit(opts RateLimitOptions) func(http.Handler) http.Handler {
	if opts.RPS <= 0 {
		opts.RPS = defaultRateLimitRPS
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultRateLimitBurst
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				requestID := GetRequestID(r.Context())
				response.Error(w,
					http.StatusTooManyRequests,
					response.ErrCodeRateLimited,
					"Too many requests",
					requestID,
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
