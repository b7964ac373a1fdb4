package storage

import (
	"context"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/chhz0/superv/types"
)

var resultBucket = []byte("task_results")

type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resultBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) SaveResult(ctx context.Context, res *types.TaskResult) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(res)
		if err != nil {
			return err
		}
		return tx.Bucket(resultBucket).Put([]byte(res.TaskID), data)
	})
}

func (s *BoltStore) GetResult(ctx context.Context, taskID string) (*types.TaskResult, error) {
	var res *types.TaskResult
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(resultBucket).Get([]byte(taskID))
		if data == nil {
			return ErrResultNotFound
		}
		var r types.TaskResult
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		res = &r
		return nil
	})
	return res, err
}

func (s *BoltStore) CountByOutcome(ctx context.Context) (int, int, error) {
	var completed, failed int
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(resultBucket).ForEach(func(k, v []byte) error {
			var res types.TaskResult
			if err := json.Unmarshal(v, &res); err != nil {
				return nil // skip bad rows
			}
			if res.Success {
				completed++
			} else {
				failed++
			}
			return nil
		})
	})
	if err != nil {
		return 0, 0, err
	}
	return completed, failed, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
