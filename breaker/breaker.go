package breaker

import (
	"sync"
	"time"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

type Config struct {
	// FailureThreshold is the windowed failure rate (0,1] that trips
	// the breaker once MinimumRequests samples exist.
	FailureThreshold float64
	MinimumRequests  int
	Window           time.Duration
	Cooldown         time.Duration
	// SuccessThreshold is the number of half-open successes needed to
	// close again.
	SuccessThreshold int
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 0.5,
		MinimumRequests:  5,
		Window:           60 * time.Second,
		Cooldown:         30 * time.Second,
		SuccessThreshold: 2,
	}
}

type sample struct {
	at      time.Time
	success bool
}

// CircuitBreaker isolates a single worker behind a three-state FSM.
// All methods are safe for concurrent use.
type CircuitBreaker struct {
	cfg Config

	mu                sync.Mutex
	state             State
	samples           []sample
	lastFailure       time.Time
	halfOpenSuccesses int

	now func() time.Time
}

func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 0.5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		cfg:   cfg,
		state: StateClosed,
		now:   time.Now,
	}
}

// CanExecute reports whether a call may proceed. An open breaker whose
// cooldown has elapsed flips to half-open and admits the call.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) >= cb.cfg.Cooldown {
			cb.state = StateHalfOpen
			cb.halfOpenSuccesses = 0
			return true
		}
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.samples = nil
		}
	case StateClosed:
		cb.samples = append(cb.samples, sample{at: cb.now(), success: true})
		cb.prune()
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	switch cb.state {
	case StateHalfOpen:
		cb.state = StateOpen
		cb.lastFailure = now
	case StateClosed:
		cb.samples = append(cb.samples, sample{at: now, success: false})
		cb.prune()
		if len(cb.samples) >= cb.cfg.MinimumRequests && cb.failureRate() >= cb.cfg.FailureThreshold {
			cb.state = StateOpen
			cb.lastFailure = now
		}
	case StateOpen:
		cb.lastFailure = now
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

type Stats struct {
	State       State     `json:"state"`
	Requests    int       `json:"requests"`
	Failures    int       `json:"failures"`
	FailureRate float64   `json:"failureRate"`
	LastFailure time.Time `json:"lastFailure,omitempty"`
}

func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.prune()
	failures := 0
	for _, s := range cb.samples {
		if !s.success {
			failures++
		}
	}
	st := Stats{
		State:       cb.state,
		Requests:    len(cb.samples),
		Failures:    failures,
		LastFailure: cb.lastFailure,
	}
	if len(cb.samples) > 0 {
		st.FailureRate = float64(failures) / float64(len(cb.samples))
	}
	return st
}

// Reset returns the breaker to closed with an empty window.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.samples = nil
	cb.halfOpenSuccesses = 0
}

// prune drops samples older than the window. Caller holds the lock.
func (cb *CircuitBreaker) prune() {
	if cb.cfg.Window <= 0 {
		return
	}
	cutoff := cb.now().Add(-cb.cfg.Window)
	i := 0
	for ; i < len(cb.samples); i++ {
		if cb.samples[i].at.After(cutoff) {
			break
		}
	}
	if i > 0 {
		cb.samples = append(cb.samples[:0], cb.samples[i:]...)
	}
}

func (cb *CircuitBreaker) failureRate() float64 {
	if len(cb.samples) == 0 {
		return 0
	}
	failures := 0
	for _, s := range cb.samples {
		if !s.success {
			failures++
		}
	}
	return float64(failures) / float64(len(cb.samples))
}
