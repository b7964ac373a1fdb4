package metrics

import (
	"github.com/chhz0/superv/core"
	"github.com/chhz0/superv/types"
)

// Observer bridges orchestrator lifecycle events into the prometheus
// collectors.
type Observer struct {
	core.NopEvents
}

func NewObserver() *Observer {
	return &Observer{}
}

func (*Observer) OnTaskAssigned(task *types.Task, workerID string) {
	TasksAssignedTotal.WithLabelValues(workerID).Inc()
}

func (*Observer) OnTaskCompleted(res *types.TaskResult) {
	TasksSettledTotal.WithLabelValues(res.WorkerID, "completed").Inc()
	TaskDurationSeconds.WithLabelValues(res.WorkerID).Observe(float64(res.DurationMs) / 1000)
}

func (*Observer) OnTaskFailed(task *types.Task, errMsg string) {
	TasksSettledTotal.WithLabelValues(task.AssignedTo, "failed").Inc()
}

func (*Observer) OnWorkerOffline(w *types.Worker) {
	WorkersOffline.Inc()
}
