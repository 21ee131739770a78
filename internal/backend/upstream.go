package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gmstack/balancer/internal/config"
)

// Upstream manages outbound connections to pool targets. A single
// http.Transport provides keep-alive connection reuse per target; the
// dialer enforces the connect timeout and callers apply the response
// timeout via request context.
type Upstream struct {
	cfg             config.Upstream
	transport       *http.Transport
	responseTimeout time.Duration
}

// NewUpstream creates a new upstream connection manager.
func NewUpstream(cfg config.Upstream) *Upstream {
	connectTimeout := cfg.ConnectTimeout.Duration()
	if connectTimeout == 0 {
		connectTimeout = 2 * time.Second
	}

	responseTimeout := cfg.ResponseTimeout.Duration()
	if responseTimeout == 0 {
		responseTimeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     false,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout.Duration(),
		ResponseHeaderTimeout: responseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Upstream{
		cfg:             cfg,
		transport:       transport,
		responseTimeout: responseTimeout,
	}
}

// Transport returns the shared round tripper.
func (u *Upstream) Transport() http.RoundTripper {
	return u.transport
}

// ResponseTimeout returns the per-request response deadline.
func (u *Upstream) ResponseTimeout() time.Duration {
	return u.responseTimeout
}

// CloseIdleConnections closes idle upstream connections.
func (u *Upstream) CloseIdleConnections() {
	u.transport.CloseIdleConnections()
}

// ClassifyError maps a transport error onto the upstream error
// taxonomy. Timeouts (dial or response deadline) become
// ErrUpstreamTimeout, everything else ErrUpstreamConnection. A nil
// error or a client-side context cancellation is returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUpstreamConnection, err)
}
