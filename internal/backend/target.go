// Package backend provides the backend pool, health gate and upstream
// connection management for the balancer.
package backend

import (
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

// Status represents the health status of a target.
type Status int32

const (
	// StatusUnknown indicates the target has not been probed yet.
	StatusUnknown Status = iota
	// StatusHealthy indicates the target is healthy.
	StatusHealthy
	// StatusUnhealthy indicates the target is unhealthy.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Target represents a single backend replica. Address, Port and Weight
// are immutable after registration; status and connection counters are
// updated atomically.
type Target struct {
	Address string
	Port    int
	Weight  int

	status      atomic.Int32
	connections atomic.Int64
	lastUsed    atomic.Int64
}

// NewTarget creates a new target. A zero weight defaults to 1.
func NewTarget(address string, port, weight int) *Target {
	if weight <= 0 {
		weight = 1
	}
	t := &Target{
		Address: address,
		Port:    port,
		Weight:  weight,
	}
	t.status.Store(int32(StatusUnknown))
	return t
}

// HostPort returns the target endpoint in host:port form. It is the
// target's identity within a pool.
func (t *Target) HostPort() string {
	return net.JoinHostPort(t.Address, strconv.Itoa(t.Port))
}

// URL returns the target URL.
func (t *Target) URL() string {
	return fmt.Sprintf("http://%s", t.HostPort())
}

// Status returns the target status.
func (t *Target) Status() Status {
	return Status(t.status.Load())
}

// SetStatus sets the target status.
func (t *Target) SetStatus(status Status) {
	t.status.Store(int32(status))
}

// Selectable reports whether the target may receive traffic. Targets
// that have not been probed yet are selectable so traffic can flow
// before the first health sweep completes.
func (t *Target) Selectable() bool {
	s := t.Status()
	return s == StatusHealthy || s == StatusUnknown
}

// Connections returns the current in-flight request count.
func (t *Target) Connections() int64 {
	return t.connections.Load()
}

// IncrementConnections increments the in-flight request count.
func (t *Target) IncrementConnections() {
	t.connections.Add(1)
	t.lastUsed.Store(time.Now().UnixNano())
}

// DecrementConnections decrements the in-flight request count.
func (t *Target) DecrementConnections() {
	t.connections.Add(-1)
}

// LastUsed returns the last time the target was selected.
func (t *Target) LastUsed() time.Time {
	return time.Unix(0, t.lastUsed.Load())
}
