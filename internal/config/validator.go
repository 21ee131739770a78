package config

import "fmt"

// ValidateConfig validates the configuration and returns an error if invalid.
func ValidateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	if err := validatePort(c.Listener.Port, "listener.port"); err != nil {
		return err
	}

	if err := validateBackends(c.Backends); err != nil {
		return err
	}

	if err := validateLoadBalancer(c.LoadBalancer); err != nil {
		return err
	}

	if err := validateHealthCheck(c.HealthCheck); err != nil {
		return err
	}

	if err := validateUpstream(c.Upstream); err != nil {
		return err
	}

	if c.RateLimit != nil && c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("rateLimit.requestsPerSecond must be positive")
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rateLimit.burst must be positive")
		}
	}

	if c.CircuitBreaker != nil && c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.MaxFailures == 0 {
			return fmt.Errorf("circuitBreaker.maxFailures must be positive")
		}
		if c.CircuitBreaker.Timeout.Duration() <= 0 {
			return fmt.Errorf("circuitBreaker.timeout must be positive")
		}
	}

	if c.Admin.Port != 0 {
		if err := validatePort(c.Admin.Port, "admin.port"); err != nil {
			return err
		}
		if c.Admin.Port == c.Listener.Port {
			return fmt.Errorf("admin.port must differ from listener.port")
		}
	}

	return nil
}

// validateBackends checks the backend pool definition. The pool must be
// non-empty and free of duplicate endpoints at startup.
func validateBackends(backends []BackendHost) error {
	if len(backends) == 0 {
		return fmt.Errorf("at least one backend is required")
	}

	seen := make(map[string]bool, len(backends))
	for i, b := range backends {
		if b.Address == "" {
			return fmt.Errorf("backends[%d].address is required", i)
		}
		if err := validatePort(b.Port, fmt.Sprintf("backends[%d].port", i)); err != nil {
			return err
		}
		if b.Weight < 0 {
			return fmt.Errorf("backends[%d].weight must be non-negative", i)
		}
		key := b.HostPort()
		if seen[key] {
			return fmt.Errorf("duplicate backend endpoint: %s", key)
		}
		seen[key] = true
	}

	return nil
}

func validateLoadBalancer(lb LoadBalancer) error {
	switch lb.Algorithm {
	case "", AlgorithmRoundRobin, AlgorithmWeighted:
		return nil
	default:
		return fmt.Errorf("invalid loadBalancer.algorithm: %s (must be %s or %s)",
			lb.Algorithm, AlgorithmRoundRobin, AlgorithmWeighted)
	}
}

func validateHealthCheck(hc HealthCheck) error {
	switch hc.Kind {
	case "", ProbeHTTP, ProbeTCP:
	default:
		return fmt.Errorf("invalid healthCheck.kind: %s (must be %s or %s)",
			hc.Kind, ProbeHTTP, ProbeTCP)
	}

	if hc.Kind != ProbeTCP && hc.Path == "" {
		return fmt.Errorf("healthCheck.path is required for http probes")
	}
	if hc.Interval.Duration() <= 0 {
		return fmt.Errorf("healthCheck.interval must be positive")
	}
	if hc.Timeout.Duration() <= 0 {
		return fmt.Errorf("healthCheck.timeout must be positive")
	}
	if hc.HealthyThreshold <= 0 {
		return fmt.Errorf("healthCheck.healthyThreshold must be positive")
	}
	if hc.UnhealthyThreshold <= 0 {
		return fmt.Errorf("healthCheck.unhealthyThreshold must be positive")
	}

	return nil
}

func validateUpstream(u Upstream) error {
	if u.ConnectTimeout.Duration() <= 0 {
		return fmt.Errorf("upstream.connectTimeout must be positive")
	}
	if u.ResponseTimeout.Duration() <= 0 {
		return fmt.Errorf("upstream.responseTimeout must be positive")
	}
	if u.MaxIdleConns < 0 {
		return fmt.Errorf("upstream.maxIdleConns must be non-negative")
	}
	if u.MaxIdleConnsPerHost < 0 {
		return fmt.Errorf("upstream.maxIdleConnsPerHost must be non-negative")
	}

	return nil
}

// validatePort validates that a port number is within valid range.
func validatePort(port int, name string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}
