package middleware

import (
	"net/http"
	"time"

	"github.com/gmstack/balancer/internal/observability"
)

// Logging returns middleware that logs each request with its method,
// path, status, size and duration. The request ID from the context is
// included when present.
func Logging(logger observability.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			fields := []observability.Field{
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.String("remote_addr", r.RemoteAddr),
				observability.Int("status", rw.status),
				observability.Int("size", rw.size),
				observability.Duration("duration", time.Since(start)),
			}
			if id := observability.RequestIDFromContext(r.Context()); id != "" {
				fields = append(fields, observability.String("request_id", id))
			}
			if rw.status >= http.StatusInternalServerError {
				logger.Error("request completed", fields...)
			} else {
				logger.Info("request completed", fields...)
			}
		})
	}
}
