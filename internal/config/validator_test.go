package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Backends = []BackendHost{
		{Address: "gm1", Port: 5000},
		{Address: "gm2", Port: 5000},
	}
	return cfg
}

func TestValidateConfig_Valid(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateConfig(validConfig()))
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()

	assert.Error(t, ValidateConfig(nil))
}

func TestValidateConfig_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			"invalid listener port",
			func(c *Config) { c.Listener.Port = 0 },
			"listener.port",
		},
		{
			"listener port too high",
			func(c *Config) { c.Listener.Port = 70000 },
			"listener.port",
		},
		{
			"no backends",
			func(c *Config) { c.Backends = nil },
			"at least one backend",
		},
		{
			"backend without address",
			func(c *Config) { c.Backends[0].Address = "" },
			"backends[0].address",
		},
		{
			"backend with invalid port",
			func(c *Config) { c.Backends[1].Port = -1 },
			"backends[1].port",
		},
		{
			"duplicate backend endpoint",
			func(c *Config) { c.Backends[1] = c.Backends[0] },
			"duplicate backend endpoint",
		},
		{
			"negative weight",
			func(c *Config) { c.Backends[0].Weight = -2 },
			"weight",
		},
		{
			"unknown algorithm",
			func(c *Config) { c.LoadBalancer.Algorithm = "random" },
			"loadBalancer.algorithm",
		},
		{
			"unknown probe kind",
			func(c *Config) { c.HealthCheck.Kind = "grpc" },
			"healthCheck.kind",
		},
		{
			"http probe without path",
			func(c *Config) { c.HealthCheck.Path = "" },
			"healthCheck.path",
		},
		{
			"non-positive interval",
			func(c *Config) { c.HealthCheck.Interval = 0 },
			"healthCheck.interval",
		},
		{
			"non-positive probe timeout",
			func(c *Config) { c.HealthCheck.Timeout = 0 },
			"healthCheck.timeout",
		},
		{
			"non-positive healthy threshold",
			func(c *Config) { c.HealthCheck.HealthyThreshold = 0 },
			"healthyThreshold",
		},
		{
			"non-positive unhealthy threshold",
			func(c *Config) { c.HealthCheck.UnhealthyThreshold = 0 },
			"unhealthyThreshold",
		},
		{
			"non-positive connect timeout",
			func(c *Config) { c.Upstream.ConnectTimeout = 0 },
			"upstream.connectTimeout",
		},
		{
			"non-positive response timeout",
			func(c *Config) { c.Upstream.ResponseTimeout = 0 },
			"upstream.responseTimeout",
		},
		{
			"rate limit without rate",
			func(c *Config) { c.RateLimit = &RateLimit{Enabled: true, Burst: 1} },
			"requestsPerSecond",
		},
		{
			"rate limit without burst",
			func(c *Config) { c.RateLimit = &RateLimit{Enabled: true, RequestsPerSecond: 10} },
			"burst",
		},
		{
			"breaker without max failures",
			func(c *Config) { c.CircuitBreaker = &CircuitBreaker{Enabled: true} },
			"maxFailures",
		},
		{
			"admin port equals listener port",
			func(c *Config) { c.Admin.Port = c.Listener.Port },
			"admin.port",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateConfig_TCPProbeWithoutPath(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.HealthCheck.Kind = ProbeTCP
	cfg.HealthCheck.Path = ""

	assert.NoError(t, ValidateConfig(cfg))
}

func TestValidateConfig_DisabledOptionalSections(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.RateLimit = &RateLimit{Enabled: false}
	cfg.CircuitBreaker = &CircuitBreaker{Enabled: false}

	assert.NoError(t, ValidateConfig(cfg))
}
