package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chhz0/superv/types"
)

func TestMemoryStoreSaveAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	res := &types.TaskResult{TaskID: "t1", WorkerID: "w1", Success: true, DurationMs: 12}
	require.NoError(t, s.SaveResult(ctx, res))

	got, err := s.GetResult(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, res, got)
}

func TestMemoryStoreMissingResult(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.GetResult(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrResultNotFound)
}

func TestMemoryStoreOverwrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SaveResult(ctx, &types.TaskResult{TaskID: "t1", Success: false}))
	require.NoError(t, s.SaveResult(ctx, &types.TaskResult{TaskID: "t1", Success: true}))

	got, err := s.GetResult(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, got.Success)
}

func TestMemoryStoreCountByOutcome(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.SaveResult(ctx, &types.TaskResult{TaskID: "a", Success: true})
	_ = s.SaveResult(ctx, &types.TaskResult{TaskID: "b", Success: true})
	_ = s.SaveResult(ctx, &types.TaskResult{TaskID: "c", Success: false})

	completed, failed, err := s.CountByOutcome(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, completed)
	assert.Equal(t, 1, failed)

	assert.NoError(t, s.Close())
}
