package backend

import (
	"sync"
	"sync/atomic"

	"github.com/gmstack/balancer/internal/config"
)

// Balancer is the interface for load balancing algorithms.
type Balancer interface {
	// Next returns the next selectable target, or nil if none.
	Next() *Target
	// SetTargets replaces the target set.
	SetTargets(targets []*Target)
	// Algorithm returns the algorithm name for logging and metrics.
	Algorithm() string
}

// RoundRobinBalancer cycles sequentially through the selectable subset
// of the pool using a shared atomic cursor, so concurrent selections
// distribute evenly without a lock across the selection path.
type RoundRobinBalancer struct {
	targets []*Target
	current atomic.Uint64
	mu      sync.RWMutex
}

// NewRoundRobinBalancer creates a new round-robin balancer.
func NewRoundRobinBalancer(targets []*Target) *RoundRobinBalancer {
	return &RoundRobinBalancer{
		targets: targets,
	}
}

// Next returns the next target in round-robin order over the selectable
// subset. Unhealthy targets are skipped without consuming a rotation
// step for the remaining members.
func (b *RoundRobinBalancer) Next() *Target {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.targets) == 0 {
		return nil
	}

	selectable := selectableTargets(b.targets)
	if len(selectable) == 0 {
		return nil
	}

	idx := b.current.Add(1) - 1
	return selectable[idx%uint64(len(selectable))]
}

// SetTargets replaces the target set.
func (b *RoundRobinBalancer) SetTargets(targets []*Target) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targets = targets
}

// Algorithm returns the algorithm name.
func (b *RoundRobinBalancer) Algorithm() string {
	return config.AlgorithmRoundRobin
}

// WeightedRoundRobinBalancer applies round robin over a ring in which
// each target appears once per unit of weight. Selection is
// deterministic, so fairness is proportional to weight over any window
// that is a multiple of the total weight.
type WeightedRoundRobinBalancer struct {
	ring    []*Target
	current atomic.Uint64
	mu      sync.RWMutex
}

// NewWeightedRoundRobinBalancer creates a new weighted round-robin
// balancer.
func NewWeightedRoundRobinBalancer(targets []*Target) *WeightedRoundRobinBalancer {
	b := &WeightedRoundRobinBalancer{}
	b.ring = buildWeightedRing(targets)
	return b
}

// Next returns the next target from the weighted ring, skipping slots
// whose target is not currently selectable.
func (b *WeightedRoundRobinBalancer) Next() *Target {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := uint64(len(b.ring))
	if n == 0 {
		return nil
	}

	for i := uint64(0); i < n; i++ {
		idx := b.current.Add(1) - 1
		target := b.ring[idx%n]
		if target.Selectable() {
			return target
		}
	}

	return nil
}

// SetTargets replaces the target set and rebuilds the weighted ring.
func (b *WeightedRoundRobinBalancer) SetTargets(targets []*Target) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ring = buildWeightedRing(targets)
}

// Algorithm returns the algorithm name.
func (b *WeightedRoundRobinBalancer) Algorithm() string {
	return config.AlgorithmWeighted
}

// buildWeightedRing expands targets into a ring with one slot per unit
// of weight, preserving registration order.
func buildWeightedRing(targets []*Target) []*Target {
	total := 0
	for _, t := range targets {
		total += t.Weight
	}

	ring := make([]*Target, 0, total)
	for _, t := range targets {
		for i := 0; i < t.Weight; i++ {
			ring = append(ring, t)
		}
	}
	return ring
}

// selectableTargets filters targets eligible for selection.
func selectableTargets(targets []*Target) []*Target {
	selectable := make([]*Target, 0, len(targets))
	for _, target := range targets {
		if target.Selectable() {
			selectable = append(selectable, target)
		}
	}
	return selectable
}

// NewBalancer creates a balancer for the configured algorithm.
func NewBalancer(algorithm string, targets []*Target) Balancer {
	switch algorithm {
	case config.AlgorithmWeighted:
		return NewWeightedRoundRobinBalancer(targets)
	default:
		return NewRoundRobinBalancer(targets)
	}
}
