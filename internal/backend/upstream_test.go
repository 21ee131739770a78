package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gmstack/balancer/internal/config"
)

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string   { return "i/o timeout" }
func (fakeTimeoutError) Timeout() bool   { return true }
func (fakeTimeoutError) Temporary() bool { return true }

func TestNewUpstream_Defaults(t *testing.T) {
	t.Parallel()

	u := NewUpstream(config.Upstream{})

	assert.Equal(t, 30*time.Second, u.ResponseTimeout())
	assert.NotNil(t, u.Transport())
}

func TestNewUpstream_ConfiguredTimeouts(t *testing.T) {
	t.Parallel()

	u := NewUpstream(config.Upstream{
		ConnectTimeout:  config.Duration(time.Second),
		ResponseTimeout: config.Duration(5 * time.Second),
	})

	assert.Equal(t, 5*time.Second, u.ResponseTimeout())
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"client cancellation passes through", context.Canceled, context.Canceled},
		{"deadline exceeded", context.DeadlineExceeded, ErrUpstreamTimeout},
		{"net timeout", fakeTimeoutError{}, ErrUpstreamTimeout},
		{"connection refused", errors.New("dial tcp: connection refused"), ErrUpstreamConnection},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ClassifyError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}
