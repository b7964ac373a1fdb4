package breaker

import "sync"

// Registry lazily creates one breaker per worker id, all sharing the
// same configuration.
type Registry struct {
	cfg      Config
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*CircuitBreaker),
	}
}

func (r *Registry) Get(id string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[id]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[id]; ok {
		return cb
	}
	cb = New(r.cfg)
	r.breakers[id] = cb
	return cb
}

// IsAvailable is shorthand for Get(id).CanExecute().
func (r *Registry) IsAvailable(id string) bool {
	return r.Get(id).CanExecute()
}

func (r *Registry) RecordSuccess(id string) {
	r.Get(id).RecordSuccess()
}

func (r *Registry) RecordFailure(id string) {
	r.Get(id).RecordFailure()
}

func (r *Registry) AllStats() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Stats, len(r.breakers))
	for id, cb := range r.breakers {
		out[id] = cb.Stats()
	}
	return out
}

// OpenCircuits lists ids whose breaker is currently open.
func (r *Registry) OpenCircuits() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []string
	for id, cb := range r.breakers {
		if cb.State() == StateOpen {
			open = append(open, id)
		}
	}
	return open
}

func (r *Registry) Reset(id string) {
	r.mu.RLock()
	cb, ok := r.breakers[id]
	r.mu.RUnlock()
	if ok {
		cb.Reset()
	}
}

func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cb := range r.breakers {
		cb.Reset()
	}
}

// Remove drops the breaker for an unregistered worker.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.breakers, id)
}
