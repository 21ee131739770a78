// Package proxy implements the reverse proxy that forwards inbound
// requests to backend targets selected by the load balancer.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"sync/atomic"
	"time"

	"github.com/gmstack/balancer/internal/backend"
	"github.com/gmstack/balancer/internal/metrics"
	"github.com/gmstack/balancer/internal/observability"
)

// hopHeaders are hop-by-hop headers that must not be forwarded to the
// backend. See RFC 7230, section 6.1.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type targetContextKey struct{}

// routeState is the pool and balancer pair swapped atomically on
// config reload.
type routeState struct {
	pool     *backend.Pool
	balancer backend.Balancer
}

// Proxy forwards requests to backend targets. Selection state is held
// behind an atomic pointer so a config reload can swap the pool and
// balancer without blocking in-flight requests.
type Proxy struct {
	state    atomic.Pointer[routeState]
	upstream *backend.Upstream
	rp       *httputil.ReverseProxy
	logger   observability.Logger
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithProxyLogger sets the logger.
func WithProxyLogger(logger observability.Logger) Option {
	return func(p *Proxy) {
		p.logger = logger
	}
}

// New creates a Proxy over the given pool, balancer and upstream
// connection manager. An optional transport wrapper (e.g. a circuit
// breaker) may replace the upstream transport via WithTransport.
func New(pool *backend.Pool, balancer backend.Balancer, upstream *backend.Upstream, opts ...Option) *Proxy {
	p := &Proxy{
		upstream: upstream,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.state.Store(&routeState{pool: pool, balancer: balancer})
	p.rp = &httputil.ReverseProxy{
		Director:     p.director,
		Transport:    upstream.Transport(),
		ErrorHandler: p.errorHandler,
	}
	return p
}

// WithTransport replaces the round tripper used for backend requests.
// It must be called before the proxy serves traffic.
func (p *Proxy) WithTransport(rt http.RoundTripper) *Proxy {
	p.rp.Transport = rt
	return p
}

// Update swaps the pool and balancer, typically after a config
// reload. In-flight requests keep the state they started with.
func (p *Proxy) Update(pool *backend.Pool, balancer backend.Balancer) {
	p.state.Store(&routeState{pool: pool, balancer: balancer})
	p.logger.Info("proxy routing state updated",
		observability.Int("targets", pool.Len()),
		observability.String("algorithm", balancer.Algorithm()),
	)
}

// Pool returns the current backend pool.
func (p *Proxy) Pool() *backend.Pool {
	return p.state.Load().pool
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st := p.state.Load()
	target := st.balancer.Next()
	if target == nil {
		metrics.Get().RecordNoAvailableBackend()
		p.logger.Warn("no available backend",
			observability.String("method", r.Method),
			observability.String("path", r.URL.Path),
		)
		writeJSONError(w, http.StatusServiceUnavailable, "no available backend")
		return
	}

	endpoint := target.HostPort()
	m := metrics.Get()
	m.RecordLBSelection(endpoint, st.balancer.Algorithm())

	target.IncrementConnections()
	m.InFlightRequests.WithLabelValues(endpoint).Inc()
	defer func() {
		target.DecrementConnections()
		m.InFlightRequests.WithLabelValues(endpoint).Dec()
	}()

	ctx, cancel := context.WithTimeout(r.Context(), p.upstream.ResponseTimeout())
	defer cancel()
	r = r.WithContext(context.WithValue(ctx, targetContextKey{}, target))

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	p.rp.ServeHTTP(rec, r)
	m.RecordProxyRequest(endpoint, r.Method, rec.status, time.Since(start))
}

// director rewrites the request to address the selected target. The
// Host header is forwarded as received from the client; only the URL
// host changes. X-Forwarded-For is appended by httputil.ReverseProxy.
func (p *Proxy) director(req *http.Request) {
	target := targetFromContext(req.Context())
	req.URL.Scheme = "http"
	req.URL.Host = target.HostPort()

	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	if req.Header.Get("X-Forwarded-Proto") == "" {
		req.Header.Set("X-Forwarded-Proto", "http")
	}
	if req.Header.Get("X-Forwarded-Host") == "" {
		req.Header.Set("X-Forwarded-Host", req.Host)
	}
}

// errorHandler maps upstream failures to gateway status codes:
// timeouts become 504, connection failures 502, and an open circuit
// breaker 503.
func (p *Proxy) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	endpoint := ""
	if target := targetFromContext(r.Context()); target != nil {
		endpoint = target.HostPort()
	}

	classified := backend.ClassifyError(err)
	if errors.Is(classified, context.Canceled) {
		// Client went away; nothing useful to write.
		return
	}

	status := http.StatusBadGateway
	errorType := "connection"
	message := "bad gateway"
	switch {
	case errors.Is(classified, backend.ErrUpstreamTimeout):
		status = http.StatusGatewayTimeout
		errorType = "timeout"
		message = "upstream timeout"
	case errors.Is(err, backend.ErrCircuitOpen):
		status = http.StatusServiceUnavailable
		errorType = "circuit_open"
		message = "backend temporarily unavailable"
	}

	metrics.Get().RecordUpstreamError(endpoint, errorType)
	p.logger.Error("upstream request failed",
		observability.String("method", r.Method),
		observability.String("path", r.URL.Path),
		observability.String("error_type", errorType),
		observability.Error(NewProxyError("forward", endpoint, classified)),
	)
	writeJSONError(w, status, message)
}

func targetFromContext(ctx context.Context) *backend.Target {
	target, _ := ctx.Value(targetContextKey{}).(*backend.Target)
	return target
}

// statusRecorder captures the status code written by the reverse
// proxy so it can be recorded in metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush implements http.Flusher for streaming responses.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":  message,
		"status": status,
	})
}
