// Package health exposes liveness, readiness and health endpoints on
// the admin listener.
package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// CheckFunc performs a named health check. A nil error means the
// check passed.
type CheckFunc func() error

// Checker aggregates named health checks and reports overall status.
type Checker struct {
	mu        sync.RWMutex
	checks    map[string]CheckFunc
	version   string
	startTime time.Time
}

// NewChecker creates a Checker.
func NewChecker(version string) *Checker {
	return &Checker{
		checks:    make(map[string]CheckFunc),
		version:   version,
		startTime: time.Now(),
	}
}

// RegisterCheck registers a named check. Re-registering a name
// replaces the previous check.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// status runs all checks and returns the aggregate report.
func (c *Checker) status() (bool, map[string]string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthy := true
	results := make(map[string]string, len(c.checks))
	for name, check := range c.checks {
		if err := check(); err != nil {
			healthy = false
			results[name] = err.Error()
		} else {
			results[name] = "ok"
		}
	}
	return healthy, results
}

// HealthHandler reports overall health with per-check detail.
func (c *Checker) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		healthy, results := c.status()
		status := http.StatusOK
		state := "healthy"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "unhealthy"
		}
		writeJSON(w, status, map[string]any{
			"status":  state,
			"version": c.version,
			"uptime":  time.Since(c.startTime).String(),
			"checks":  results,
		})
	})
}

// ReadinessHandler reports whether the balancer can serve traffic. It
// returns 503 until every registered readiness check passes, in
// particular until at least one backend target is selectable.
func (c *Checker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ready, results := c.status()
		if !ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not ready",
				"checks": results,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})
}

// LivenessHandler reports that the process is alive.
func (c *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "alive"})
	})
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
