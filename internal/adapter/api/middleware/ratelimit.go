package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/user/question-service/internal/adapter/metrics"
)

// RateLimit is a middleware factory applying a token-bucket limit across
// all requests. The metrics may be nil.
func RateLimit(limiter *rate.Limiter, m *metrics.APIMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				if m != nil {
					m.RateLimited.Inc()
				}
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
