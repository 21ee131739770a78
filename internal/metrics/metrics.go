// Package metrics provides Prometheus metrics for the balancer.
package metrics

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "balancer"
)

// Metrics holds all balancer Prometheus metrics.
type Metrics struct {
	// Inbound server metrics.
	ServerRequestsTotal    *prometheus.CounterVec
	ServerRequestDuration  *prometheus.HistogramVec
	PanicsRecoveredTotal   prometheus.Counter
	RateLimitRejectedTotal prometheus.Counter

	// Routing and upstream metrics, labeled by backend endpoint.
	ProxyRequestsTotal      *prometheus.CounterVec
	ProxyResponseDuration   *prometheus.HistogramVec
	LBSelectionsTotal       *prometheus.CounterVec
	NoAvailableBackendTotal prometheus.Counter
	UpstreamErrorsTotal     *prometheus.CounterVec
	InFlightRequests        *prometheus.GaugeVec

	// Health gate metrics.
	HealthChecksTotal   *prometheus.CounterVec
	HealthCheckDuration *prometheus.HistogramVec
	HealthStatus        *prometheus.GaugeVec
	ConsecutiveFailures *prometheus.GaugeVec
	PoolSize            prometheus.Gauge
	PoolHealthyTargets  prometheus.Gauge
}

var (
	instance *Metrics
	once     sync.Once
)

// New creates a Metrics instance with all collectors registered via
// promauto (default global registry).
func New() *Metrics {
	return &Metrics{
		ServerRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "requests_total",
				Help:      "Total number of inbound requests",
			},
			[]string{"method", "status_code"},
		),
		ServerRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "request_duration_seconds",
				Help:      "Duration of inbound requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		PanicsRecoveredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "panics_recovered_total",
				Help:      "Total number of recovered handler panics",
			},
		),
		RateLimitRejectedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "rate_limit_rejected_total",
				Help:      "Total number of requests rejected by the rate limiter",
			},
		),
		ProxyRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "requests_total",
				Help:      "Total number of requests forwarded to a backend",
			},
			[]string{"backend", "method", "status_code"},
		),
		ProxyResponseDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "response_duration_seconds",
				Help:      "Duration of backend responses in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend", "method"},
		),
		LBSelectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "lb_selections_total",
				Help:      "Total number of load balancer selections",
			},
			[]string{"backend", "algorithm"},
		),
		NoAvailableBackendTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "no_available_backend_total",
				Help:      "Total number of requests rejected because no backend was available",
			},
		),
		UpstreamErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "upstream_errors_total",
				Help:      "Total number of upstream errors by type",
			},
			[]string{"backend", "error_type"},
		),
		InFlightRequests: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "in_flight_requests",
				Help:      "Number of requests currently in flight per backend",
			},
			[]string{"backend"},
		),
		HealthChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "checks_total",
				Help:      "Total number of health probes by result",
			},
			[]string{"backend", "result"},
		),
		HealthCheckDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "check_duration_seconds",
				Help:      "Duration of health probes in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		HealthStatus: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "status",
				Help:      "Health status per backend (1=healthy, 0=unhealthy)",
			},
			[]string{"backend"},
		),
		ConsecutiveFailures: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "consecutive_failures",
				Help:      "Consecutive probe failures per backend",
			},
			[]string{"backend"},
		),
		PoolSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "size",
				Help:      "Number of registered backend targets",
			},
		),
		PoolHealthyTargets: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "healthy_targets",
				Help:      "Number of backend targets currently healthy",
			},
		),
	}
}

// Get returns the singleton metrics instance.
func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// MustRegister registers all collectors with the given registry,
// ignoring AlreadyRegisteredError so it is safe to call more than
// once. Any other registration error panics.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	for _, c := range m.collectors() {
		if err := registry.Register(c); err != nil {
			if !isAlreadyRegistered(err) {
				panic(err)
			}
		}
	}
}

// RecordServerRequest records a completed inbound request.
func (m *Metrics) RecordServerRequest(method string, statusCode int, duration time.Duration) {
	sc := strconv.Itoa(statusCode)
	m.ServerRequestsTotal.WithLabelValues(method, sc).Inc()
	m.ServerRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordProxyRequest records a completed backend request.
func (m *Metrics) RecordProxyRequest(backend, method string, statusCode int, duration time.Duration) {
	sc := strconv.Itoa(statusCode)
	m.ProxyRequestsTotal.WithLabelValues(backend, method, sc).Inc()
	m.ProxyResponseDuration.WithLabelValues(backend, method).Observe(duration.Seconds())
}

// RecordLBSelection records a load balancer selection.
func (m *Metrics) RecordLBSelection(backend, algorithm string) {
	m.LBSelectionsTotal.WithLabelValues(backend, algorithm).Inc()
}

// RecordNoAvailableBackend records a rejected selection.
func (m *Metrics) RecordNoAvailableBackend() {
	m.NoAvailableBackendTotal.Inc()
}

// RecordUpstreamError records an upstream error by type.
func (m *Metrics) RecordUpstreamError(backend, errorType string) {
	m.UpstreamErrorsTotal.WithLabelValues(backend, errorType).Inc()
}

// RecordHealthCheck records a health probe result and duration.
func (m *Metrics) RecordHealthCheck(backend, result string, duration time.Duration) {
	m.HealthChecksTotal.WithLabelValues(backend, result).Inc()
	m.HealthCheckDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// SetHealthStatus sets the per-backend health gauge.
func (m *Metrics) SetHealthStatus(backend string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.HealthStatus.WithLabelValues(backend).Set(v)
}

// SetConsecutiveFailures sets the per-backend consecutive failure gauge.
func (m *Metrics) SetConsecutiveFailures(backend string, n int) {
	m.ConsecutiveFailures.WithLabelValues(backend).Set(float64(n))
}

// SetPoolGauges sets the pool size gauges.
func (m *Metrics) SetPoolGauges(total, healthy int) {
	m.PoolSize.Set(float64(total))
	m.PoolHealthyTargets.Set(float64(healthy))
}

// collectors returns all collectors for registration.
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ServerRequestsTotal,
		m.ServerRequestDuration,
		m.PanicsRecoveredTotal,
		m.RateLimitRejectedTotal,
		m.ProxyRequestsTotal,
		m.ProxyResponseDuration,
		m.LBSelectionsTotal,
		m.NoAvailableBackendTotal,
		m.UpstreamErrorsTotal,
		m.InFlightRequests,
		m.HealthChecksTotal,
		m.HealthCheckDuration,
		m.HealthStatus,
		m.ConsecutiveFailures,
		m.PoolSize,
		m.PoolHealthyTargets,
	}
}

// isAlreadyRegistered reports whether err is an
// AlreadyRegisteredError.
func isAlreadyRegistered(err error) bool {
	var are prometheus.AlreadyRegisteredError
	return errors.As(err, &are)
}
