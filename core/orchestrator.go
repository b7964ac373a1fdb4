package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chhz0/superv/breaker"
	"github.com/chhz0/superv/health"
	"github.com/chhz0/superv/registry"
	"github.com/chhz0/superv/router"
	"github.com/chhz0/superv/storage"
	"github.com/chhz0/superv/types"
)

var (
	ErrQueueFull    = errors.New("task queue is full")
	ErrTaskNotFound = errors.New("task not found")
	ErrValidation   = errors.New("invalid request")
)

const timeoutErrMsg = "Task timed out"

// Submission is a client task request. Optional fields fall back to
// the orchestrator defaults.
type Submission struct {
	Type       string             `json:"type"`
	Payload    json.RawMessage    `json:"payload,omitempty"`
	Priority   types.TaskPriority `json:"priority,omitempty"`
	TimeoutMs  *int64             `json:"timeoutMs,omitempty"`
	MaxRetries *int               `json:"maxRetries,omitempty"`
}

// TaskStats counts tasks by where they sit in the lifecycle.
type TaskStats struct {
	Queued    int `json:"queued"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

type Stats struct {
	Workers registry.Stats `json:"workers"`
	Tasks   TaskStats      `json:"tasks"`
}

// Orchestrator owns the pending queue, the active table and the
// results store, and drives the assignment and liveness ticks.
type Orchestrator struct {
	cfg Config

	reg      *registry.Registry
	rt       *router.Router
	breakers *breaker.Registry
	trackers *health.Registry
	results  storage.ResultStore
	events   Events
	logger   *log.Logger

	// mu guards queue, active and the counters so cross-collection
	// transitions stay atomic (a task is always in exactly one place).
	mu        sync.Mutex
	queue     *taskQueue
	active    map[string]*types.Task
	completed int
	failed    int

	runMu   sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool

	now func() time.Time
}

func New(cfg Config, store storage.ResultStore, events Events) *Orchestrator {
	cfg.normalize()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	if events == nil {
		events = NopEvents{}
	}

	o := &Orchestrator{
		cfg:      cfg,
		reg:      registry.New(cfg.HeartbeatInterval, cfg.MissedHeartbeats),
		rt:       router.New(cfg.RoutingStrategy),
		breakers: breaker.NewRegistry(cfg.Breaker),
		trackers: health.NewRegistry(cfg.Health),
		results:  store,
		events:   events,
		logger:   log.New(log.Writer(), "[core] ", log.LstdFlags),
		queue:    newTaskQueue(),
		active:   make(map[string]*types.Task),
		now:      time.Now,
	}

	// Routing honors breaker state: workers with an open circuit are
	// dropped from the candidate pool.
	o.rt.Filter = func(w *types.Worker) bool {
		return o.breakers.IsAvailable(w.ID)
	}

	return o
}

// Registry exposes the worker table for read-side queries.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.reg
}

// Breakers exposes per-worker circuit stats.
func (o *Orchestrator) Breakers() *breaker.Registry {
	return o.breakers
}

// Start launches the assignment and liveness tickers.
func (o *Orchestrator) Start() {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if o.running {
		return
	}
	o.stopCh = make(chan struct{})
	o.running = true

	o.wg.Add(2)
	go o.assignLoop()
	go o.livenessLoop()
}

// Stop halts the tickers. The queue is not drained.
func (o *Orchestrator) Stop() {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if !o.running {
		return
	}
	close(o.stopCh)
	o.wg.Wait()
	o.running = false
}

func (o *Orchestrator) assignLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.AssignInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.Tick()
		case <-o.stopCh:
			return
		}
	}
}

func (o *Orchestrator) livenessLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.CheckWorkerHealth()
		case <-o.stopCh:
			return
		}
	}
}

// SubmitTask validates the submission, mints an id and queues the
// task by priority.
func (o *Orchestrator) SubmitTask(sub Submission) (*types.Task, error) {
	if sub.Type == "" {
		return nil, fmt.Errorf("%w: task type is required", ErrValidation)
	}

	priority := sub.Priority
	switch priority {
	case "":
		priority = types.PriorityNormal
	case types.PriorityCritical, types.PriorityHigh, types.PriorityNormal, types.PriorityLow:
	default:
		return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, priority)
	}

	timeoutMs := o.cfg.DefaultTaskTimeout.Milliseconds()
	if sub.TimeoutMs != nil {
		if *sub.TimeoutMs <= 0 {
			return nil, fmt.Errorf("%w: timeoutMs must be positive", ErrValidation)
		}
		timeoutMs = *sub.TimeoutMs
	}

	maxRetries := o.cfg.DefaultMaxRetries
	if sub.MaxRetries != nil {
		if *sub.MaxRetries < 0 {
			return nil, fmt.Errorf("%w: maxRetries must not be negative", ErrValidation)
		}
		maxRetries = *sub.MaxRetries
	}

	task := &types.Task{
		ID:         uuid.New().String(),
		Type:       sub.Type,
		Payload:    sub.Payload,
		Priority:   priority,
		TimeoutMs:  timeoutMs,
		MaxRetries: maxRetries,
		Status:     types.StatusPending,
		CreatedAt:  o.now(),
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.queue.Len() >= o.cfg.MaxQueueSize {
		return nil, ErrQueueFull
	}
	o.queue.Insert(task)

	return task, nil
}

// ReportTaskResult settles an active task: completion, a retry
// re-queue, or a terminal failure. Results for unknown or already
// settled tasks are logged and dropped.
func (o *Orchestrator) ReportTaskResult(res *types.TaskResult) error {
	if res.TaskID == "" || res.WorkerID == "" {
		return fmt.Errorf("%w: taskId and workerId are required", ErrValidation)
	}
	if res.ReportedAt.IsZero() {
		res.ReportedAt = o.now()
	}

	o.mu.Lock()
	task, ok := o.active[res.TaskID]
	if !ok {
		o.mu.Unlock()
		o.logger.Printf("dropping result for unknown task %s from %s", res.TaskID, res.WorkerID)
		return nil
	}
	delete(o.active, res.TaskID)
	assignedTo := task.AssignedTo

	var retried bool
	if res.Success {
		task.Status = types.StatusCompleted
		task.CompletedAt = res.ReportedAt
		task.Result = res.Result
		o.completed++
	} else if task.Retries < task.MaxRetries {
		task.Retries++
		task.Status = types.StatusPending
		task.AssignedTo = ""
		task.AssignedAt = time.Time{}
		o.queue.Insert(task)
		retried = true
	} else {
		task.Status = types.StatusFailed
		task.CompletedAt = res.ReportedAt
		task.Error = res.Error
		o.failed++
	}
	o.mu.Unlock()

	if assignedTo != "" {
		o.reg.AddLoad(assignedTo, -1)
	}
	o.recordOutcome(res)

	switch {
	case res.Success:
		if err := o.results.SaveResult(context.Background(), res); err != nil {
			o.logger.Printf("save result %s: %v", res.TaskID, err)
		}
		o.emit(func(e Events) { e.OnTaskCompleted(res) })
	case retried:
		o.logger.Printf("task %s failed on %s, retry %d/%d: %s",
			res.TaskID, res.WorkerID, task.Retries, task.MaxRetries, res.Error)
	default:
		if err := o.results.SaveResult(context.Background(), res); err != nil {
			o.logger.Printf("save result %s: %v", res.TaskID, err)
		}
		o.emit(func(e Events) { e.OnTaskFailed(task, res.Error) })
	}

	return nil
}

// recordOutcome feeds the per-worker breaker and health tracker.
func (o *Orchestrator) recordOutcome(res *types.TaskResult) {
	if res.Success {
		o.breakers.RecordSuccess(res.WorkerID)
		o.trackers.Get(res.WorkerID).RecordSuccess(time.Duration(res.DurationMs) * time.Millisecond)
	} else {
		o.breakers.RecordFailure(res.WorkerID)
		o.trackers.Get(res.WorkerID).RecordFailure()
	}
}

// Tick runs one assignment round: the timeout sweep first, then
// pending-task routing in queue order.
func (o *Orchestrator) Tick() {
	o.sweepTimeouts()
	o.assignPending()
}

func (o *Orchestrator) sweepTimeouts() {
	now := o.now()

	o.mu.Lock()
	var expired []*types.Task
	for _, task := range o.active {
		if now.Sub(task.AssignedAt) > time.Duration(task.TimeoutMs)*time.Millisecond {
			expired = append(expired, task)
		}
	}
	o.mu.Unlock()

	// Timeouts reuse the normal failure path, so the retry policy
	// applies uniformly. A real result racing the sweep wins or loses
	// atomically at the active-table lookup.
	for _, task := range expired {
		o.logger.Printf("task %s timed out on %s after %dms", task.ID, task.AssignedTo, task.TimeoutMs)
		_ = o.ReportTaskResult(&types.TaskResult{
			TaskID:     task.ID,
			WorkerID:   task.AssignedTo,
			Success:    false,
			Error:      timeoutErrMsg,
			DurationMs: now.Sub(task.AssignedAt).Milliseconds(),
			ReportedAt: now,
		})
	}
}

func (o *Orchestrator) assignPending() {
	o.mu.Lock()
	pending := o.queue.Snapshot()
	o.mu.Unlock()

	for _, task := range pending {
		worker, ok := o.rt.Route(task, o.reg)
		if !ok {
			continue
		}

		o.mu.Lock()
		if !o.queue.Remove(task.ID) {
			// Raced with another transition; leave it be.
			o.mu.Unlock()
			continue
		}
		task.Status = types.StatusAssigned
		task.AssignedTo = worker.ID
		task.AssignedAt = o.now()
		o.active[task.ID] = task
		snapshot := *task
		o.mu.Unlock()

		o.reg.AddLoad(worker.ID, 1)
		o.emit(func(e Events) { e.OnTaskAssigned(&snapshot, worker.ID) })
	}
}

// CheckWorkerHealth ages out silent workers and notifies observers.
func (o *Orchestrator) CheckWorkerHealth() {
	for _, w := range o.reg.CheckHealth(o.now()) {
		o.logger.Printf("worker %s offline: no heartbeat", w.ID)
		o.trackers.Get(w.ID).MarkDown()
		w := w
		o.emit(func(e Events) { e.OnWorkerOffline(w) })
	}
}

// RegisterWorker inserts or refreshes a worker record.
func (o *Orchestrator) RegisterWorker(d registry.Descriptor) (*types.Worker, error) {
	if d.ID == "" || d.Endpoint == "" {
		return nil, fmt.Errorf("%w: worker id and endpoint are required", ErrValidation)
	}

	w := o.reg.Register(d)
	o.trackers.Get(w.ID).MarkUp()
	o.emit(func(e Events) { e.OnWorkerOnline(w) })
	return w, nil
}

// UnregisterWorker removes a worker and its breaker and tracker.
func (o *Orchestrator) UnregisterWorker(id string) bool {
	ok := o.reg.Unregister(id)
	if ok {
		o.breakers.Remove(id)
		o.trackers.Remove(id)
	}
	return ok
}

// Heartbeat refreshes a worker's dynamic state. A beat from a worker
// previously marked offline brings it back up.
func (o *Orchestrator) Heartbeat(p registry.HeartbeatPayload) (*types.Worker, error) {
	if p.WorkerID == "" {
		return nil, fmt.Errorf("%w: workerId is required", ErrValidation)
	}

	prev, existed := o.reg.Get(p.WorkerID)
	w, err := o.reg.Heartbeat(p)
	if err != nil {
		return nil, err
	}

	if existed && prev.Status == types.WorkerOffline && w.Status != types.WorkerOffline {
		o.trackers.Get(w.ID).MarkUp()
		o.emit(func(e Events) { e.OnWorkerOnline(w) })
	}
	return w, nil
}

// GetTask finds a task still in flight: active first, then queued.
// Returns a snapshot so callers can marshal it without holding the
// orchestrator lock.
func (o *Orchestrator) GetTask(id string) (*types.Task, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if t, ok := o.active[id]; ok {
		cp := *t
		return &cp, true
	}
	if t, ok := o.queue.Get(id); ok {
		cp := *t
		return &cp, true
	}
	return nil, false
}

// GetTaskResult reads the results table.
func (o *Orchestrator) GetTaskResult(id string) (*types.TaskResult, error) {
	res, err := o.results.GetResult(context.Background(), id)
	if errors.Is(err, storage.ErrResultNotFound) {
		return nil, ErrTaskNotFound
	}
	return res, err
}

// WorkerHealth scores a worker with its current load hint.
func (o *Orchestrator) WorkerHealth(w *types.Worker) health.Score {
	return o.trackers.Get(w.ID).Score(w.CurrentLoad, w.MaxLoad)
}

func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	tasks := TaskStats{
		Queued:    o.queue.Len(),
		Active:    len(o.active),
		Completed: o.completed,
		Failed:    o.failed,
	}
	o.mu.Unlock()

	return Stats{
		Workers: o.reg.Stats(),
		Tasks:   tasks,
	}
}

// emit invokes the observers, swallowing panics so a bad handler
// cannot corrupt lifecycle state. A panic ends delivery of that event:
// observers after the panicking one in a MultiEvents do not see it.
func (o *Orchestrator) emit(fn func(Events)) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Printf("event observer panic: %v", r)
		}
	}()
	fn(o.events)
}
