package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	checker := NewChecker("test")

	rec := httptest.NewRecorder()
	checker.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessHandler_NotReadyUntilChecksPass(t *testing.T) {
	t.Parallel()

	checker := NewChecker("test")
	ready := false
	checker.RegisterCheck("backends", func() error {
		if !ready {
			return errors.New("no available backend")
		}
		return nil
	})

	rec := httptest.NewRecorder()
	checker.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	checker.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler_AggregatesChecks(t *testing.T) {
	t.Parallel()

	checker := NewChecker("1.2.3")
	checker.RegisterCheck("good", func() error { return nil })
	checker.RegisterCheck("bad", func() error { return errors.New("broken") })

	rec := httptest.NewRecorder()
	checker.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "1.2.3", body["version"])

	checks, ok := body["checks"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", checks["good"])
	assert.Equal(t, "broken", checks["bad"])
}

func TestHealthHandler_HealthyWithoutChecks(t *testing.T) {
	t.Parallel()

	checker := NewChecker("test")

	rec := httptest.NewRecorder()
	checker.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterCheck_Replaces(t *testing.T) {
	t.Parallel()

	checker := NewChecker("test")
	checker.RegisterCheck("backends", func() error { return errors.New("down") })
	checker.RegisterCheck("backends", func() error { return nil })

	rec := httptest.NewRecorder()
	checker.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
}
