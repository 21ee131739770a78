// Package config provides configuration management for the balancer.
// Configuration is loaded from a YAML file with environment variable
// substitution; absent fields fall back to the defaults returned by
// DefaultConfig.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds all configuration settings for the balancer.
type Config struct {
	Listener       Listener        `yaml:"listener" json:"listener"`
	Backends       []BackendHost   `yaml:"backends" json:"backends"`
	LoadBalancer   LoadBalancer    `yaml:"loadBalancer,omitempty" json:"loadBalancer,omitempty"`
	HealthCheck    HealthCheck     `yaml:"healthCheck,omitempty" json:"healthCheck,omitempty"`
	Upstream       Upstream        `yaml:"upstream,omitempty" json:"upstream,omitempty"`
	RateLimit      *RateLimit      `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
	CircuitBreaker *CircuitBreaker `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
	Admin          Admin           `yaml:"admin,omitempty" json:"admin,omitempty"`
	Logging        Logging         `yaml:"logging,omitempty" json:"logging,omitempty"`
}

// Listener defines the public HTTP listener.
type Listener struct {
	Bind         string   `yaml:"bind,omitempty" json:"bind,omitempty"`
	Port         int      `yaml:"port" json:"port"`
	ReadTimeout  Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout  Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
}

// BackendHost represents a single backend replica endpoint.
type BackendHost struct {
	Address string `yaml:"address" json:"address"`
	Port    int    `yaml:"port" json:"port"`
	Weight  int    `yaml:"weight,omitempty" json:"weight,omitempty"`
}

// HostPort returns the endpoint in host:port form.
func (h BackendHost) HostPort() string {
	return net.JoinHostPort(h.Address, strconv.Itoa(h.Port))
}

// LoadBalancer represents load balancer configuration.
type LoadBalancer struct {
	Algorithm string `yaml:"algorithm,omitempty" json:"algorithm,omitempty"`
}

// Load balancer algorithm constants.
const (
	AlgorithmRoundRobin = "roundRobin"
	AlgorithmWeighted   = "weighted"
)

// Health check probe kinds.
const (
	ProbeHTTP = "http"
	ProbeTCP  = "tcp"
)

// HealthCheck represents health check configuration.
type HealthCheck struct {
	Kind               string   `yaml:"kind,omitempty" json:"kind,omitempty"`
	Path               string   `yaml:"path,omitempty" json:"path,omitempty"`
	Interval           Duration `yaml:"interval,omitempty" json:"interval,omitempty"`
	Timeout            Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	HealthyThreshold   int      `yaml:"healthyThreshold,omitempty" json:"healthyThreshold,omitempty"`
	UnhealthyThreshold int      `yaml:"unhealthyThreshold,omitempty" json:"unhealthyThreshold,omitempty"`
}

// Upstream contains outbound connection settings shared by all backends.
type Upstream struct {
	ConnectTimeout      Duration `yaml:"connectTimeout,omitempty" json:"connectTimeout,omitempty"`
	ResponseTimeout     Duration `yaml:"responseTimeout,omitempty" json:"responseTimeout,omitempty"`
	MaxIdleConns        int      `yaml:"maxIdleConns,omitempty" json:"maxIdleConns,omitempty"`
	MaxIdleConnsPerHost int      `yaml:"maxIdleConnsPerHost,omitempty" json:"maxIdleConnsPerHost,omitempty"`
	IdleConnTimeout     Duration `yaml:"idleConnTimeout,omitempty" json:"idleConnTimeout,omitempty"`
}

// RateLimit configures the optional inbound rate limiter.
type RateLimit struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty" json:"requestsPerSecond,omitempty"`
	Burst             int     `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// CircuitBreaker configures the optional upstream circuit breaker.
// It is a rejection gate only; the balancer never retries a request
// against an alternate backend.
type CircuitBreaker struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	MaxFailures uint32   `yaml:"maxFailures,omitempty" json:"maxFailures,omitempty"`
	Interval    Duration `yaml:"interval,omitempty" json:"interval,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Admin defines the admin server exposing metrics and probe endpoints.
type Admin struct {
	Port        int    `yaml:"port,omitempty" json:"port,omitempty"`
	MetricsPath string `yaml:"metricsPath,omitempty" json:"metricsPath,omitempty"`
}

// Logging represents logging configuration.
type Logging struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// DefaultConfig returns a Config with default values. Loaded files are
// unmarshaled on top of these defaults.
func DefaultConfig() *Config {
	return &Config{
		Listener: Listener{
			Bind:         "0.0.0.0",
			Port:         80,
			ReadTimeout:  Duration(30 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
			IdleTimeout:  Duration(120 * time.Second),
		},
		LoadBalancer: LoadBalancer{
			Algorithm: AlgorithmRoundRobin,
		},
		HealthCheck: HealthCheck{
			Kind:               ProbeHTTP,
			Path:               "/",
			Interval:           Duration(10 * time.Second),
			Timeout:            Duration(2 * time.Second),
			HealthyThreshold:   1,
			UnhealthyThreshold: 2,
		},
		Upstream: Upstream{
			ConnectTimeout:      Duration(2 * time.Second),
			ResponseTimeout:     Duration(30 * time.Second),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     Duration(90 * time.Second),
		},
		Admin: Admin{
			Port:        9090,
			MetricsPath: "/metrics",
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// String returns a short description of the config for startup logging.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, Backends: %d, Algorithm: %s, AdminPort: %d}",
		c.Listener.Port, len(c.Backends), c.LoadBalancer.Algorithm, c.Admin.Port)
}
