package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksSubmittedTotal counts accepted submissions by priority.
	TasksSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superv_tasks_submitted_total",
			Help: "Total number of tasks accepted into the queue",
		},
		[]string{"priority"},
	)

	// TasksAssignedTotal counts assignments by worker.
	TasksAssignedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superv_tasks_assigned_total",
			Help: "Total number of task assignments",
		},
		[]string{"worker"},
	)

	// TasksSettledTotal counts terminal outcomes per worker.
	TasksSettledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superv_tasks_settled_total",
			Help: "Total number of tasks reaching a terminal state",
		},
		[]string{"worker", "status"}, // status is "completed" or "failed"
	)

	// TaskDurationSeconds tracks reported execution duration.
	TaskDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "superv_task_duration_seconds",
			Help:    "Histogram of reported task execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"worker"},
	)

	// WorkersOffline counts liveness-driven offline transitions.
	WorkersOffline = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "superv_workers_offline_total",
			Help: "Total number of workers aged out by the liveness sweep",
		},
	)
)

// RegisterQueueGauges exposes live queue and active depths via the
// supplied snapshot functions.
func RegisterQueueGauges(queued, active func() float64) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "superv_queue_depth",
		Help: "Tasks currently waiting in the pending queue",
	}, queued)
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "superv_active_tasks",
		Help: "Tasks currently assigned and awaiting a result",
	}, active)
}
