package storage

import (
	"context"
	"errors"

	"github.com/chhz0/superv/types"
)

var (
	ErrResultNotFound = errors.New("result not found")
)

// ResultStore holds finished task results. The memory store backs the
// orchestrator's results table; the redis/sqlite/bolt stores trade the
// process-lifetime guarantee for bounded or durable retention.
type ResultStore interface {
	SaveResult(ctx context.Context, res *types.TaskResult) error
	GetResult(ctx context.Context, taskID string) (*types.TaskResult, error)
	CountByOutcome(ctx context.Context) (completed int, failed int, err error)
	Close() error
}
