package middleware

import (
	"net/http"
	"time"

	"github.com/gmstack/balancer/internal/metrics"
)

// Metrics returns middleware that records inbound request counts and
// durations.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)
			metrics.Get().RecordServerRequest(r.Method, rw.status, time.Since(start))
		})
	}
}
