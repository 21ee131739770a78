package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gmstack/balancer/internal/config"
	"github.com/gmstack/balancer/internal/health"
)

func TestBuildAdminMux_ServesBalancerMetrics(t *testing.T) {
	t.Parallel()

	mux := buildAdminMux(config.DefaultConfig(), health.NewChecker("test"))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "balancer_proxy_no_available_backend_total")
}

func TestBuildAdminMux_ProbeEndpoints(t *testing.T) {
	t.Parallel()

	mux := buildAdminMux(config.DefaultConfig(), health.NewChecker("test"))

	for _, path := range []string{"/health", "/ready", "/live"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("BALANCER_TEST_VAR", "from-env")

	assert.Equal(t, "from-env", getEnvOrDefault("BALANCER_TEST_VAR", "fallback"))
	assert.Equal(t, "fallback", getEnvOrDefault("BALANCER_TEST_UNSET", "fallback"))
}
