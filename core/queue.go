package core

import (
	"github.com/chhz0/superv/types"
)

// taskQueue is the pending queue: ordered by priority rank, FIFO
// within a rank. Not safe for concurrent use; the orchestrator's lock
// guards it.
type taskQueue struct {
	items []*types.Task
}

func newTaskQueue() *taskQueue {
	return &taskQueue{items: make([]*types.Task, 0, 16)}
}

// Insert places the task before the first entry with a strictly
// greater rank, keeping insertion order within a priority.
func (q *taskQueue) Insert(t *types.Task) {
	rank := types.PriorityRank(t.Priority)
	at := len(q.items)
	for i, existing := range q.items {
		if types.PriorityRank(existing.Priority) > rank {
			at = i
			break
		}
	}
	q.items = append(q.items, nil)
	copy(q.items[at+1:], q.items[at:])
	q.items[at] = t
}

// Remove deletes the task by id; reports whether it was queued.
func (q *taskQueue) Remove(id string) bool {
	for i, t := range q.items {
		if t.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

func (q *taskQueue) Get(id string) (*types.Task, bool) {
	for _, t := range q.items {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Snapshot copies the current ordering.
func (q *taskQueue) Snapshot() []*types.Task {
	out := make([]*types.Task, len(q.items))
	copy(out, q.items)
	return out
}

func (q *taskQueue) Len() int {
	return len(q.items)
}
