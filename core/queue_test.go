package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chhz0/superv/types"
)

func queuedIDs(q *taskQueue) []string {
	ids := make([]string, 0, q.Len())
	for _, t := range q.Snapshot() {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestQueueOrdersByPriority(t *testing.T) {
	q := newTaskQueue()
	q.Insert(&types.Task{ID: "n1", Priority: types.PriorityNormal})
	q.Insert(&types.Task{ID: "h1", Priority: types.PriorityHigh})
	q.Insert(&types.Task{ID: "c1", Priority: types.PriorityCritical})
	q.Insert(&types.Task{ID: "n2", Priority: types.PriorityNormal})
	q.Insert(&types.Task{ID: "l1", Priority: types.PriorityLow})

	assert.Equal(t, []string{"c1", "h1", "n1", "n2", "l1"}, queuedIDs(q))
}

func TestQueueFIFOWithinPriority(t *testing.T) {
	q := newTaskQueue()
	q.Insert(&types.Task{ID: "a", Priority: types.PriorityHigh})
	q.Insert(&types.Task{ID: "b", Priority: types.PriorityHigh})
	q.Insert(&types.Task{ID: "c", Priority: types.PriorityHigh})

	assert.Equal(t, []string{"a", "b", "c"}, queuedIDs(q))
}

func TestQueueUnknownPrioritySortsWithNormal(t *testing.T) {
	q := newTaskQueue()
	q.Insert(&types.Task{ID: "n1", Priority: types.PriorityNormal})
	q.Insert(&types.Task{ID: "x1", Priority: "mystery"})
	q.Insert(&types.Task{ID: "l1", Priority: types.PriorityLow})

	assert.Equal(t, []string{"n1", "x1", "l1"}, queuedIDs(q))
}

func TestQueueRemove(t *testing.T) {
	q := newTaskQueue()
	q.Insert(&types.Task{ID: "a", Priority: types.PriorityNormal})
	q.Insert(&types.Task{ID: "b", Priority: types.PriorityNormal})

	assert.True(t, q.Remove("a"))
	assert.False(t, q.Remove("a"))
	assert.Equal(t, []string{"b"}, queuedIDs(q))
}

func TestQueueGet(t *testing.T) {
	q := newTaskQueue()
	q.Insert(&types.Task{ID: "a", Priority: types.PriorityNormal})

	got, ok := q.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)

	_, ok = q.Get("missing")
	assert.False(t, ok)
}

func TestQueueRetryJumpsAheadOfLowerPriorities(t *testing.T) {
	q := newTaskQueue()
	q.Insert(&types.Task{ID: "n1", Priority: types.PriorityNormal})
	q.Insert(&types.Task{ID: "l1", Priority: types.PriorityLow})

	// A re-queued high task lands before everything of lower rank but
	// after its own rank's earlier entries.
	q.Insert(&types.Task{ID: "h-retry", Priority: types.PriorityHigh, Retries: 1})

	assert.Equal(t, []string{"h-retry", "n1", "l1"}, queuedIDs(q))
}
