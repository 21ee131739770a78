package proxy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gmstack/balancer/internal/backend"
)

func TestProxyError(t *testing.T) {
	t.Parallel()

	cause := backend.ErrUpstreamConnection
	err := NewProxyError("forward", "gm1:5000", cause)

	assert.Equal(t, "proxy forward gm1:5000: upstream connection failed", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestProxyError_NoTarget(t *testing.T) {
	t.Parallel()

	err := NewProxyError("select", "", backend.ErrNoAvailableBackend)
	assert.Equal(t, "proxy select: no available backend", err.Error())
}

func TestIsProxyError(t *testing.T) {
	t.Parallel()

	err := NewProxyError("forward", "gm1:5000", backend.ErrUpstreamTimeout)
	assert.True(t, IsProxyError(err))
	assert.True(t, IsProxyError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsProxyError(errors.New("plain")))
}
