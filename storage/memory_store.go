package storage

import (
	"context"
	"sync"

	"github.com/chhz0/superv/types"
)

// MemoryStore keeps results for the lifetime of the process. It is the
// default backend.
type MemoryStore struct {
	results map[string]*types.TaskResult
	mu      sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		results: make(map[string]*types.TaskResult),
	}
}

func (s *MemoryStore) SaveResult(ctx context.Context, res *types.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.TaskID] = res
	return nil
}

func (s *MemoryStore) GetResult(ctx context.Context, taskID string) (*types.TaskResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.results[taskID]
	if !ok {
		return nil, ErrResultNotFound
	}
	return res, nil
}

func (s *MemoryStore) CountByOutcome(ctx context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var completed, failed int
	for _, res := range s.results {
		if res.Success {
			completed++
		} else {
			failed++
		}
	}
	return completed, failed, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
