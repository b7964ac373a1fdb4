package router

import (
	"math/rand"
	"sync"

	"github.com/chhz0/superv/registry"
	"github.com/chhz0/superv/types"
)

type Strategy string

const (
	RoundRobin      Strategy = "round-robin"
	LeastLoaded     Strategy = "least-loaded"
	CapabilityMatch Strategy = "capability-match"
	Random          Strategy = "random"
)

// ValidStrategy reports whether s names a known strategy.
func ValidStrategy(s Strategy) bool {
	switch s {
	case RoundRobin, LeastLoaded, CapabilityMatch, Random:
		return true
	}
	return false
}

// Router pairs a task with a worker from the registry. The router
// itself ignores breaker state; callers gate candidates through the
// Filter predicate.
type Router struct {
	strategy Strategy

	// Filter, when set, drops candidates before eligibility is
	// evaluated (e.g. workers with an open circuit).
	Filter func(*types.Worker) bool

	mu      sync.Mutex
	rrIndex int
}

func New(strategy Strategy) *Router {
	if !ValidStrategy(strategy) {
		strategy = LeastLoaded
	}
	return &Router{strategy: strategy}
}

func (r *Router) Strategy() Strategy {
	return r.strategy
}

// Route selects a worker for the task, or reports no fit.
func (r *Router) Route(task *types.Task, reg *registry.Registry) (*types.Worker, bool) {
	pool := reg.GetAvailable()
	if r.Filter != nil {
		kept := pool[:0]
		for _, w := range pool {
			if r.Filter(w) {
				kept = append(kept, w)
			}
		}
		pool = kept
	}
	if len(pool) == 0 {
		return nil, false
	}

	eligible := capable(pool, task.Type)
	if len(eligible) == 0 {
		// No capability match anywhere: any available worker takes it.
		eligible = pool
	}

	switch r.strategy {
	case RoundRobin:
		return r.roundRobin(eligible), true
	case CapabilityMatch:
		return capabilityMatch(eligible, task.Type), true
	case Random:
		return eligible[rand.Intn(len(eligible))], true
	default:
		return leastLoaded(eligible), true
	}
}

// capable keeps workers whose set contains the type or is a wildcard.
func capable(pool []*types.Worker, taskType string) []*types.Worker {
	var out []*types.Worker
	for _, w := range pool {
		if w.HasCapability(taskType) {
			out = append(out, w)
		}
	}
	return out
}

func (r *Router) roundRobin(eligible []*types.Worker) *types.Worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := eligible[r.rrIndex%len(eligible)]
	r.rrIndex++
	return w
}

func leastLoaded(eligible []*types.Worker) *types.Worker {
	best := eligible[0]
	for _, w := range eligible[1:] {
		if w.LoadRatio() < best.LoadRatio() {
			best = w
		}
	}
	return best
}

// capabilityMatch prefers workers that list the type explicitly over
// wildcards, then picks the least loaded.
func capabilityMatch(eligible []*types.Worker, taskType string) *types.Worker {
	var explicit []*types.Worker
	for _, w := range eligible {
		if w.ListsCapability(taskType) {
			explicit = append(explicit, w)
		}
	}
	if len(explicit) > 0 {
		return leastLoaded(explicit)
	}
	return leastLoaded(eligible)
}
