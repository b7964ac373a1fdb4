package types

import (
	"encoding/json"
	"time"
)

// Worker status
type WorkerStatus string

const (
	WorkerOnline   WorkerStatus = "online"
	WorkerBusy     WorkerStatus = "busy"
	WorkerDegraded WorkerStatus = "degraded"
	WorkerOffline  WorkerStatus = "offline"
)

// Task status
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusAssigned  TaskStatus = "assigned"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusTimeout   TaskStatus = "timeout"
)

type TaskPriority string

const (
	PriorityCritical TaskPriority = "critical"
	PriorityHigh     TaskPriority = "high"
	PriorityNormal   TaskPriority = "normal"
	PriorityLow      TaskPriority = "low"
)

// PriorityRank orders priorities for queue insertion, critical first.
// Unknown values sort with normal.
func PriorityRank(p TaskPriority) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

type Worker struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Endpoint      string            `json:"endpoint"`
	Capabilities  []string          `json:"capabilities"`
	Status        WorkerStatus      `json:"status"`
	CurrentLoad   int               `json:"currentLoad"`
	MaxLoad       int               `json:"maxLoad"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	LastHeartbeat time.Time         `json:"lastHeartbeat"`
	RegisteredAt  time.Time         `json:"registeredAt"`
}

// HasCapability reports whether the worker can take tasks of the given
// type. An empty capability set is a wildcard.
func (w *Worker) HasCapability(taskType string) bool {
	if len(w.Capabilities) == 0 {
		return true
	}
	return w.ListsCapability(taskType)
}

// ListsCapability reports an explicit (non-wildcard) match.
func (w *Worker) ListsCapability(taskType string) bool {
	for _, c := range w.Capabilities {
		if c == taskType {
			return true
		}
	}
	return false
}

// LoadRatio is currentLoad/maxLoad; a worker with no declared capacity
// counts as fully loaded.
func (w *Worker) LoadRatio() float64 {
	if w.MaxLoad <= 0 {
		return 1
	}
	return float64(w.CurrentLoad) / float64(w.MaxLoad)
}

type Task struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Priority    TaskPriority    `json:"priority"`
	TimeoutMs   int64           `json:"timeoutMs"`
	MaxRetries  int             `json:"maxRetries"`
	Status      TaskStatus      `json:"status"`
	Retries     int             `json:"retries"`
	AssignedTo  string          `json:"assignedTo,omitempty"`
	AssignedAt  time.Time       `json:"assignedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt time.Time       `json:"completedAt,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// TaskResult is the record a worker posts back when it finishes a task.
type TaskResult struct {
	TaskID     string          `json:"taskId"`
	WorkerID   string          `json:"workerId"`
	Success    bool            `json:"success"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"durationMs"`
	ReportedAt time.Time       `json:"reportedAt"`
}

func (t *Task) Serialize() ([]byte, error) {
	return json.Marshal(t)
}

func DeserializeTask(data []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskResult) Serialize() ([]byte, error) {
	return json.Marshal(r)
}

func DeserializeResult(data []byte) (*TaskResult, error) {
	var res TaskResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
