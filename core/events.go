package core

import (
	"github.com/chhz0/superv/types"
)

// Events receives task and worker lifecycle notifications. Handlers
// run synchronously on the goroutine that caused the event (the
// assignment or liveness tick, or the caller of ReportTaskResult,
// RegisterWorker or Heartbeat) and must not block; panics are caught
// and logged by the orchestrator.
type Events interface {
	OnTaskAssigned(task *types.Task, workerID string)
	OnTaskCompleted(res *types.TaskResult)
	OnTaskFailed(task *types.Task, errMsg string)
	OnWorkerOnline(w *types.Worker)
	OnWorkerOffline(w *types.Worker)
}

// NopEvents implements Events with no-ops; embed it to observe only
// some events.
type NopEvents struct{}

func (NopEvents) OnTaskAssigned(*types.Task, string) {}
func (NopEvents) OnTaskCompleted(*types.TaskResult)  {}
func (NopEvents) OnTaskFailed(*types.Task, string)   {}
func (NopEvents) OnWorkerOnline(*types.Worker)       {}
func (NopEvents) OnWorkerOffline(*types.Worker)      {}

// MultiEvents fans out to several observers in order.
type MultiEvents []Events

func (m MultiEvents) OnTaskAssigned(t *types.Task, workerID string) {
	for _, e := range m {
		e.OnTaskAssigned(t, workerID)
	}
}

func (m MultiEvents) OnTaskCompleted(res *types.TaskResult) {
	for _, e := range m {
		e.OnTaskCompleted(res)
	}
}

func (m MultiEvents) OnTaskFailed(t *types.Task, errMsg string) {
	for _, e := range m {
		e.OnTaskFailed(t, errMsg)
	}
}

func (m MultiEvents) OnWorkerOnline(w *types.Worker) {
	for _, e := range m {
		e.OnWorkerOnline(w)
	}
}

func (m MultiEvents) OnWorkerOffline(w *types.Worker) {
	for _, e := range m {
		e.OnWorkerOffline(w)
	}
}
