package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTarget(t *testing.T) {
	t.Parallel()

	target := NewTarget("gm1", 5000, 3)

	assert.Equal(t, "gm1", target.Address)
	assert.Equal(t, 5000, target.Port)
	assert.Equal(t, 3, target.Weight)
	assert.Equal(t, StatusUnknown, target.Status())
}

func TestNewTarget_DefaultWeight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		weight int
	}{
		{"zero weight", 0},
		{"negative weight", -1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			target := NewTarget("gm1", 5000, tt.weight)
			assert.Equal(t, 1, target.Weight)
		})
	}
}

func TestTarget_HostPort(t *testing.T) {
	t.Parallel()

	target := NewTarget("gm1", 5000, 1)
	assert.Equal(t, "gm1:5000", target.HostPort())
	assert.Equal(t, "http://gm1:5000", target.URL())
}

func TestTarget_StatusTransitions(t *testing.T) {
	t.Parallel()

	target := NewTarget("gm1", 5000, 1)
	assert.Equal(t, "unknown", target.Status().String())

	target.SetStatus(StatusHealthy)
	assert.Equal(t, StatusHealthy, target.Status())
	assert.Equal(t, "healthy", target.Status().String())

	target.SetStatus(StatusUnhealthy)
	assert.Equal(t, StatusUnhealthy, target.Status())
	assert.Equal(t, "unhealthy", target.Status().String())
}

func TestTarget_Selectable(t *testing.T) {
	t.Parallel()

	target := NewTarget("gm1", 5000, 1)

	// Unprobed targets receive traffic until the first verdict.
	assert.True(t, target.Selectable())

	target.SetStatus(StatusHealthy)
	assert.True(t, target.Selectable())

	target.SetStatus(StatusUnhealthy)
	assert.False(t, target.Selectable())
}

func TestTarget_Connections(t *testing.T) {
	t.Parallel()

	target := NewTarget("gm1", 5000, 1)
	assert.Equal(t, int64(0), target.Connections())

	target.IncrementConnections()
	target.IncrementConnections()
	assert.Equal(t, int64(2), target.Connections())
	assert.False(t, target.LastUsed().IsZero())

	target.DecrementConnections()
	assert.Equal(t, int64(1), target.Connections())
}
