package backend

import (
	"errors"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/gmstack/balancer/internal/config"
	"github.com/gmstack/balancer/internal/observability"
)

// ErrCircuitOpen indicates the upstream circuit breaker rejected the
// request without attempting the upstream.
var ErrCircuitOpen = errors.New("upstream circuit open")

// BreakerTransport wraps a RoundTripper with a circuit breaker over
// transport-level failures. It is a rejection gate only: an open
// circuit short-circuits requests, it never triggers a retry against
// another target. Responses with error status codes do not count as
// failures; the health gate owns status-based exclusion.
type BreakerTransport struct {
	next    http.RoundTripper
	breaker *gobreaker.CircuitBreaker
	logger  observability.Logger
}

// NewBreakerTransport creates a breaker-wrapped transport.
func NewBreakerTransport(next http.RoundTripper, cfg config.CircuitBreaker, logger observability.Logger) *BreakerTransport {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	settings := gobreaker.Settings{
		Name:     "upstream",
		Interval: cfg.Interval.Duration(),
		Timeout:  cfg.Timeout.Duration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				observability.String("breaker", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	}

	return &BreakerTransport{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	result, err := t.breaker.Execute(func() (interface{}, error) {
		return t.next.RoundTrip(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, ErrUpstreamConnection
	}
	return resp, nil
}
