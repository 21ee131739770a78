package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gmstack/balancer/internal/metrics"
	"github.com/gmstack/balancer/internal/observability"
)

// Recovery returns middleware that recovers from handler panics,
// logs the stack trace and responds with 500.
func Recovery(logger observability.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					metrics.Get().PanicsRecoveredTotal.Inc()
					logger.Error("panic recovered",
						observability.Any("panic", rec),
						observability.String("method", r.Method),
						observability.String("path", r.URL.Path),
						observability.String("stack", string(debug.Stack())),
					)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
