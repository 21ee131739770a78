package backend

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gmstack/balancer/internal/config"
	"github.com/gmstack/balancer/internal/metrics"
	"github.com/gmstack/balancer/internal/observability"
)

// StatusChangeFunc is called when a target's health status changes.
// Parameters: endpoint (host:port), healthy.
type StatusChangeFunc func(endpoint string, healthy bool)

// Health check default configuration constants.
const (
	// DefaultProbeTimeout is the default timeout for a single probe.
	DefaultProbeTimeout = 2 * time.Second

	// DefaultProbeInterval is the default interval between probe sweeps.
	DefaultProbeInterval = 10 * time.Second

	// DefaultHealthyThreshold is the default number of consecutive
	// successes required to mark a target as healthy again.
	DefaultHealthyThreshold = 1

	// DefaultUnhealthyThreshold is the default number of consecutive
	// failures required to mark a target as unhealthy. Two failures
	// avoid flapping on a single transient error.
	DefaultUnhealthyThreshold = 2
)

// HealthChecker performs periodic health probes on pool targets. All
// probe failures (timeout, refused connection, non-2xx) are treated
// uniformly; failures are never surfaced to clients, they only drive
// status transitions. Probing tolerates targets that are not ready yet:
// failed probes are retried on the next sweep indefinitely.
type HealthChecker struct {
	targets            []*Target
	cfg                config.HealthCheck
	client             *http.Client
	dialer             *net.Dialer
	logger             observability.Logger
	stopCh             chan struct{}
	stoppedCh          chan struct{}
	running            bool
	mu                 sync.Mutex
	healthyThreshold   int
	unhealthyThreshold int
	healthyCounts      map[*Target]int
	unhealthyCounts    map[*Target]int
	onStatusChange     StatusChangeFunc
}

// HealthCheckOption is a functional option for configuring the checker.
type HealthCheckOption func(*HealthChecker)

// WithHealthCheckLogger sets the logger for the health checker.
func WithHealthCheckLogger(logger observability.Logger) HealthCheckOption {
	return func(hc *HealthChecker) {
		hc.logger = logger
	}
}

// WithHealthCheckClient sets the HTTP client used for http probes.
func WithHealthCheckClient(client *http.Client) HealthCheckOption {
	return func(hc *HealthChecker) {
		hc.client = client
	}
}

// WithStatusChangeCallback sets a callback for health status changes.
func WithStatusChangeCallback(fn StatusChangeFunc) HealthCheckOption {
	return func(hc *HealthChecker) {
		hc.onStatusChange = fn
	}
}

// NewHealthChecker creates a new health checker for the given targets.
func NewHealthChecker(targets []*Target, cfg config.HealthCheck, opts ...HealthCheckOption) *HealthChecker {
	timeout := cfg.Timeout.Duration()
	if timeout == 0 {
		timeout = DefaultProbeTimeout
	}

	hc := &HealthChecker{
		targets: targets,
		cfg:     cfg,
		client: &http.Client{
			Timeout: timeout,
		},
		dialer:             &net.Dialer{Timeout: timeout},
		logger:             observability.NopLogger(),
		stopCh:             make(chan struct{}),
		stoppedCh:          make(chan struct{}),
		healthyThreshold:   cfg.HealthyThreshold,
		unhealthyThreshold: cfg.UnhealthyThreshold,
		healthyCounts:      make(map[*Target]int),
		unhealthyCounts:    make(map[*Target]int),
	}

	if hc.healthyThreshold == 0 {
		hc.healthyThreshold = DefaultHealthyThreshold
	}
	if hc.unhealthyThreshold == 0 {
		hc.unhealthyThreshold = DefaultUnhealthyThreshold
	}

	for _, opt := range opts {
		opt(hc)
	}

	return hc
}

// Start starts the health check loop.
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.mu.Lock()
	if hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = true
	hc.mu.Unlock()

	go hc.run(ctx)
}

// Stop stops the health check loop and waits for it to exit.
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	if !hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = false
	hc.mu.Unlock()

	close(hc.stopCh)
	<-hc.stoppedCh
}

// IsRunning returns true if the health checker is running.
func (hc *HealthChecker) IsRunning() bool {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return hc.running
}

// run is the main health check loop.
func (hc *HealthChecker) run(ctx context.Context) {
	defer close(hc.stoppedCh)

	interval := hc.cfg.Interval.Duration()
	if interval == 0 {
		interval = DefaultProbeInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run an initial sweep so status settles before the first tick.
	hc.CheckAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hc.stopCh:
			return
		case <-ticker.C:
			hc.CheckAll(ctx)
		}
	}
}

// CheckAll probes all targets concurrently and waits for completion.
func (hc *HealthChecker) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup

	for _, target := range hc.targets {
		wg.Add(1)
		go func(t *Target) {
			defer wg.Done()
			hc.CheckTarget(ctx, t)
		}(target)
	}

	wg.Wait()
}

// CheckTarget probes a single target and records the result.
func (hc *HealthChecker) CheckTarget(ctx context.Context, target *Target) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	probeStart := time.Now()
	var ok bool
	if hc.cfg.Kind == config.ProbeTCP {
		ok = hc.probeTCP(ctx, target)
	} else {
		ok = hc.probeHTTP(ctx, target)
	}
	probeDuration := time.Since(probeStart)

	m := metrics.Get()
	if ok {
		m.RecordHealthCheck(target.HostPort(), "success", probeDuration)
		hc.recordSuccess(target)
	} else {
		m.RecordHealthCheck(target.HostPort(), "failure", probeDuration)
		hc.recordFailure(target)
	}
}

// probeHTTP performs an HTTP GET probe. Any 2xx response passes;
// timeouts, refused connections and non-2xx responses fail uniformly.
func (hc *HealthChecker) probeHTTP(ctx context.Context, target *Target) bool {
	url := target.URL() + hc.cfg.Path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return false
	}

	resp, err := hc.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
}

// probeTCP performs a TCP connect probe.
func (hc *HealthChecker) probeTCP(ctx context.Context, target *Target) bool {
	conn, err := hc.dialer.DialContext(ctx, "tcp", target.HostPort())
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// recordSuccess records a successful probe.
func (hc *HealthChecker) recordSuccess(target *Target) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.healthyCounts[target]++
	hc.unhealthyCounts[target] = 0

	metrics.Get().SetConsecutiveFailures(target.HostPort(), 0)

	if hc.healthyCounts[target] >= hc.healthyThreshold {
		if target.Status() != StatusHealthy {
			hc.logger.Info("target became healthy",
				observability.String("endpoint", target.HostPort()),
			)
			target.SetStatus(StatusHealthy)
			metrics.Get().SetHealthStatus(target.HostPort(), true)
			if hc.onStatusChange != nil {
				hc.onStatusChange(target.HostPort(), true)
			}
		}
	}
}

// recordFailure records a failed probe.
func (hc *HealthChecker) recordFailure(target *Target) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.unhealthyCounts[target]++
	hc.healthyCounts[target] = 0

	metrics.Get().SetConsecutiveFailures(target.HostPort(), hc.unhealthyCounts[target])

	if hc.unhealthyCounts[target] >= hc.unhealthyThreshold {
		if target.Status() != StatusUnhealthy {
			hc.logger.Warn("target became unhealthy",
				observability.String("endpoint", target.HostPort()),
				observability.Int("consecutive_failures", hc.unhealthyCounts[target]),
			)
			target.SetStatus(StatusUnhealthy)
			metrics.Get().SetHealthStatus(target.HostPort(), false)
			if hc.onStatusChange != nil {
				hc.onStatusChange(target.HostPort(), false)
			}
		}
	}
}
