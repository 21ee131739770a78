package backend

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmstack/balancer/internal/config"
)

func healthyTargets(endpoints ...string) []*Target {
	targets := make([]*Target, 0, len(endpoints))
	for _, e := range endpoints {
		target := NewTarget(e, 5000, 1)
		target.SetStatus(StatusHealthy)
		targets = append(targets, target)
	}
	return targets
}

func TestRoundRobinBalancer_Alternates(t *testing.T) {
	t.Parallel()

	targets := healthyTargets("gm1", "gm2")
	b := NewRoundRobinBalancer(targets)

	// Two backends receive strictly alternating selections.
	assert.Same(t, targets[0], b.Next())
	assert.Same(t, targets[1], b.Next())
	assert.Same(t, targets[0], b.Next())
	assert.Same(t, targets[1], b.Next())
}

func TestRoundRobinBalancer_SkipsUnhealthy(t *testing.T) {
	t.Parallel()

	targets := healthyTargets("gm1", "gm2", "gm3")
	targets[1].SetStatus(StatusUnhealthy)
	b := NewRoundRobinBalancer(targets)

	for i := 0; i < 10; i++ {
		selected := b.Next()
		require.NotNil(t, selected)
		assert.NotSame(t, targets[1], selected)
	}
}

func TestRoundRobinBalancer_RecoveredTargetRejoins(t *testing.T) {
	t.Parallel()

	targets := healthyTargets("gm1", "gm2")
	targets[1].SetStatus(StatusUnhealthy)
	b := NewRoundRobinBalancer(targets)

	assert.Same(t, targets[0], b.Next())
	assert.Same(t, targets[0], b.Next())

	targets[1].SetStatus(StatusHealthy)

	seen := map[*Target]int{}
	for i := 0; i < 4; i++ {
		seen[b.Next()]++
	}
	assert.Equal(t, 2, seen[targets[0]])
	assert.Equal(t, 2, seen[targets[1]])
}

func TestRoundRobinBalancer_SelectsUnknown(t *testing.T) {
	t.Parallel()

	// Targets without a probe verdict yet still receive traffic.
	target := NewTarget("gm1", 5000, 1)
	b := NewRoundRobinBalancer([]*Target{target})

	assert.Same(t, target, b.Next())
}

func TestRoundRobinBalancer_NoneAvailable(t *testing.T) {
	t.Parallel()

	targets := healthyTargets("gm1", "gm2")
	targets[0].SetStatus(StatusUnhealthy)
	targets[1].SetStatus(StatusUnhealthy)
	b := NewRoundRobinBalancer(targets)

	assert.Nil(t, b.Next())
}

func TestRoundRobinBalancer_Empty(t *testing.T) {
	t.Parallel()

	b := NewRoundRobinBalancer(nil)
	assert.Nil(t, b.Next())
}

func TestRoundRobinBalancer_SetTargets(t *testing.T) {
	t.Parallel()

	b := NewRoundRobinBalancer(healthyTargets("gm1"))
	replacement := healthyTargets("gm2", "gm3")
	b.SetTargets(replacement)

	seen := map[*Target]bool{}
	for i := 0; i < 4; i++ {
		seen[b.Next()] = true
	}
	assert.True(t, seen[replacement[0]])
	assert.True(t, seen[replacement[1]])
}

func TestRoundRobinBalancer_ConcurrentDistribution(t *testing.T) {
	t.Parallel()

	targets := healthyTargets("gm1", "gm2")
	b := NewRoundRobinBalancer(targets)

	const goroutines = 8
	const perGoroutine = 100

	var mu sync.Mutex
	counts := map[*Target]int{}
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := map[*Target]int{}
			for j := 0; j < perGoroutine; j++ {
				local[b.Next()]++
			}
			mu.Lock()
			for target, n := range local {
				counts[target] += n
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// The shared cursor spreads selections evenly across goroutines.
	assert.Equal(t, goroutines*perGoroutine/2, counts[targets[0]])
	assert.Equal(t, goroutines*perGoroutine/2, counts[targets[1]])
}

func TestWeightedRoundRobinBalancer_Proportional(t *testing.T) {
	t.Parallel()

	a := NewTarget("gm1", 5000, 2)
	b := NewTarget("gm2", 5000, 1)
	a.SetStatus(StatusHealthy)
	b.SetStatus(StatusHealthy)

	wrr := NewWeightedRoundRobinBalancer([]*Target{a, b})

	counts := map[*Target]int{}
	for i := 0; i < 30; i++ {
		counts[wrr.Next()]++
	}
	assert.Equal(t, 20, counts[a])
	assert.Equal(t, 10, counts[b])
}

func TestWeightedRoundRobinBalancer_SkipsUnhealthy(t *testing.T) {
	t.Parallel()

	a := NewTarget("gm1", 5000, 3)
	b := NewTarget("gm2", 5000, 1)
	a.SetStatus(StatusUnhealthy)
	b.SetStatus(StatusHealthy)

	wrr := NewWeightedRoundRobinBalancer([]*Target{a, b})

	for i := 0; i < 8; i++ {
		assert.Same(t, b, wrr.Next())
	}
}

func TestWeightedRoundRobinBalancer_NoneAvailable(t *testing.T) {
	t.Parallel()

	a := NewTarget("gm1", 5000, 1)
	a.SetStatus(StatusUnhealthy)

	wrr := NewWeightedRoundRobinBalancer([]*Target{a})
	assert.Nil(t, wrr.Next())

	empty := NewWeightedRoundRobinBalancer(nil)
	assert.Nil(t, empty.Next())
}

func TestNewBalancer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		algorithm string
		want      string
	}{
		{"round robin", config.AlgorithmRoundRobin, config.AlgorithmRoundRobin},
		{"weighted", config.AlgorithmWeighted, config.AlgorithmWeighted},
		{"default", "", config.AlgorithmRoundRobin},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := NewBalancer(tt.algorithm, healthyTargets("gm1"))
			assert.Equal(t, tt.want, b.Algorithm())
		})
	}
}
