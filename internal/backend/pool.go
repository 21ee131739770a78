package backend

import (
	"fmt"
	"sync"

	"github.com/gmstack/balancer/internal/config"
	"github.com/gmstack/balancer/internal/observability"
)

// Pool is the registry of backend targets. Insertion order is preserved
// and equals configuration order. The pool is effectively append-only
// after startup; reads never block on writes.
type Pool struct {
	targets []*Target
	byAddr  map[string]*Target
	logger  observability.Logger
	mu      sync.RWMutex
}

// PoolOption is a functional option for configuring a pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the logger for the pool.
func WithPoolLogger(logger observability.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates an empty pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		byAddr: make(map[string]*Target),
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// NewPoolFromConfig creates a pool from configuration. The pool must be
// non-empty and free of duplicate endpoints.
func NewPoolFromConfig(backends []config.BackendHost, opts ...PoolOption) (*Pool, error) {
	if len(backends) == 0 {
		return nil, ErrEmptyPool
	}

	p := NewPool(opts...)
	for _, b := range backends {
		if err := p.Register(NewTarget(b.Address, b.Port, b.Weight)); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Register registers a target. It fails with ErrDuplicateTarget if a
// target with the same (host, port) is already present.
func (p *Pool) Register(target *Target) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := target.HostPort()
	if _, exists := p.byAddr[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTarget, key)
	}

	p.targets = append(p.targets, target)
	p.byAddr[key] = target

	p.logger.Info("registered backend target",
		observability.String("endpoint", key),
		observability.Int("weight", target.Weight),
	)

	return nil
}

// Get returns a target by its host:port endpoint.
func (p *Pool) Get(endpoint string) (*Target, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	target, exists := p.byAddr[endpoint]
	return target, exists
}

// Targets returns all targets in registration order.
func (p *Pool) Targets() []*Target {
	p.mu.RLock()
	defer p.mu.RUnlock()

	targets := make([]*Target, len(p.targets))
	copy(targets, p.targets)
	return targets
}

// HealthyTargets returns all targets currently marked healthy.
func (p *Pool) HealthyTargets() []*Target {
	p.mu.RLock()
	defer p.mu.RUnlock()

	healthy := make([]*Target, 0, len(p.targets))
	for _, target := range p.targets {
		if target.Status() == StatusHealthy {
			healthy = append(healthy, target)
		}
	}
	return healthy
}

// SelectableTargets returns all targets eligible for selection
// (healthy, plus unknown targets not yet probed).
func (p *Pool) SelectableTargets() []*Target {
	p.mu.RLock()
	defer p.mu.RUnlock()

	selectable := make([]*Target, 0, len(p.targets))
	for _, target := range p.targets {
		if target.Selectable() {
			selectable = append(selectable, target)
		}
	}
	return selectable
}

// Len returns the number of registered targets.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.targets)
}
