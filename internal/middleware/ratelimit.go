package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/gmstack/balancer/internal/metrics"
	"github.com/gmstack/balancer/internal/observability"
)

// RateLimit returns middleware that rejects requests above the
// configured rate with 429. The limiter is global to the listener,
// not per client.
func RateLimit(requestsPerSecond float64, burst int, logger observability.Logger) Middleware {
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				metrics.Get().RateLimitRejectedTotal.Inc()
				logger.Warn("request rate limited",
					observability.String("method", r.Method),
					observability.String("path", r.URL.Path),
					observability.String("remote_addr", r.RemoteAddr),
				)
				w.Header().Set("Retry-After", "1")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
