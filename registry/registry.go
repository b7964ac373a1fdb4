package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/chhz0/superv/types"
)

var ErrWorkerNotFound = errors.New("worker not found")

// DefaultMaxLoad applies when a registration omits maxLoad.
const DefaultMaxLoad = 10

// Descriptor is the static part of a registration.
type Descriptor struct {
	ID           string
	Name         string
	Endpoint     string
	Capabilities []string
	CurrentLoad  int
	MaxLoad      int
	Metadata     map[string]string
}

// HeartbeatPayload is what a worker reports on each beat.
type HeartbeatPayload struct {
	WorkerID     string
	Status       types.WorkerStatus
	CurrentLoad  int
	MaxLoad      int
	Capabilities []string
}

// Registry is the authoritative worker table. Liveness is derived from
// heartbeat timestamps; offline workers stay in the table until
// unregistered.
type Registry struct {
	heartbeatInterval time.Duration
	missedThreshold   int

	mu      sync.RWMutex
	workers map[string]*types.Worker
	order   []string // first-seen order, for stable iteration

	now func() time.Time
}

func New(heartbeatInterval time.Duration, missedThreshold int) *Registry {
	return &Registry{
		heartbeatInterval: heartbeatInterval,
		missedThreshold:   missedThreshold,
		workers:           make(map[string]*types.Worker),
		now:               time.Now,
	}
}

// Register inserts a worker or, if the id exists, merges the descriptor
// and brings the worker back online. Returns a snapshot of the record.
func (r *Registry) Register(d Descriptor) *types.Worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	maxLoad := d.MaxLoad
	if maxLoad <= 0 {
		maxLoad = DefaultMaxLoad
	}

	w, ok := r.workers[d.ID]
	if !ok {
		w = &types.Worker{ID: d.ID, RegisteredAt: now}
		r.workers[d.ID] = w
		r.order = append(r.order, d.ID)
	}

	w.Name = d.Name
	w.Endpoint = d.Endpoint
	w.Capabilities = append([]string(nil), d.Capabilities...)
	w.CurrentLoad = d.CurrentLoad
	w.MaxLoad = maxLoad
	if d.Metadata != nil {
		w.Metadata = d.Metadata
	}
	w.Status = types.WorkerOnline
	w.LastHeartbeat = now

	return snapshot(w)
}

// Unregister removes the worker; reports whether it existed.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workers[id]; !ok {
		return false
	}
	delete(r.workers, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Heartbeat updates the dynamic fields of a known worker and stamps
// its heartbeat time. Unknown ids leave the table untouched.
func (r *Registry) Heartbeat(p HeartbeatPayload) (*types.Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[p.WorkerID]
	if !ok {
		return nil, ErrWorkerNotFound
	}

	if p.Status != "" {
		w.Status = p.Status
	} else {
		w.Status = types.WorkerOnline
	}
	w.CurrentLoad = p.CurrentLoad
	if p.MaxLoad > 0 {
		w.MaxLoad = p.MaxLoad
	}
	if p.Capabilities != nil {
		w.Capabilities = append([]string(nil), p.Capabilities...)
	}
	w.LastHeartbeat = r.now()

	return snapshot(w), nil
}

// CheckHealth flips workers whose heartbeat is older than
// interval*missedThreshold to offline and returns the newly offline
// records.
func (r *Registry) CheckHealth(now time.Time) []*types.Worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	deadline := time.Duration(r.missedThreshold) * r.heartbeatInterval
	var flipped []*types.Worker
	for _, id := range r.order {
		w := r.workers[id]
		if w.Status == types.WorkerOffline {
			continue
		}
		if now.Sub(w.LastHeartbeat) > deadline {
			w.Status = types.WorkerOffline
			flipped = append(flipped, snapshot(w))
		}
	}
	return flipped
}

// AddLoad adjusts a worker's load by delta, clamped at zero. Used by
// the orchestrator between heartbeats; the next heartbeat overwrites.
func (r *Registry) AddLoad(id string, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[id]
	if !ok {
		return
	}
	w.CurrentLoad += delta
	if w.CurrentLoad < 0 {
		w.CurrentLoad = 0
	}
}

func (r *Registry) Get(id string) (*types.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workers[id]
	if !ok {
		return nil, false
	}
	return snapshot(w), true
}

func (r *Registry) GetAll() []*types.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.Worker, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, snapshot(r.workers[id]))
	}
	return out
}

func (r *Registry) GetByStatus(s types.WorkerStatus) []*types.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*types.Worker
	for _, id := range r.order {
		if w := r.workers[id]; w.Status == s {
			out = append(out, snapshot(w))
		}
	}
	return out
}

// GetByCapability lists online workers advertising the capability.
// Busy workers are excluded here; capability lookups feed matching,
// not fallback listing.
func (r *Registry) GetByCapability(cap string) []*types.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*types.Worker
	for _, id := range r.order {
		w := r.workers[id]
		if w.Status == types.WorkerOnline && w.ListsCapability(cap) {
			out = append(out, snapshot(w))
		}
	}
	return out
}

// GetAvailable lists online or busy workers with load headroom, in
// first-seen order.
func (r *Registry) GetAvailable() []*types.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*types.Worker
	for _, id := range r.order {
		w := r.workers[id]
		if (w.Status == types.WorkerOnline || w.Status == types.WorkerBusy) && w.CurrentLoad < w.MaxLoad {
			out = append(out, snapshot(w))
		}
	}
	return out
}

// Stats summarizes the table.
type Stats struct {
	Total       int                        `json:"total"`
	ByStatus    map[types.WorkerStatus]int `json:"byStatus"`
	TotalLoad   int                        `json:"totalLoad"`
	MaxCapacity int                        `json:"maxCapacity"`
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Stats{
		Total:    len(r.workers),
		ByStatus: make(map[types.WorkerStatus]int),
	}
	for _, w := range r.workers {
		st.ByStatus[w.Status]++
		st.TotalLoad += w.CurrentLoad
		st.MaxCapacity += w.MaxLoad
	}
	return st
}

func snapshot(w *types.Worker) *types.Worker {
	cp := *w
	cp.Capabilities = append([]string(nil), w.Capabilities...)
	return &cp
}
