package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/chhz0/superv/retry"
	"github.com/chhz0/superv/types"
)

// RedisStore keeps results in redis with a TTL, giving bounded
// retention instead of process-lifetime growth.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Redis may come up after the supervisor; give it a few seconds.
	err := retry.Do(context.Background(), &retry.ExponentialBackoff{
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		MaxAttempts: 5,
	}, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return client.Ping(ctx).Err()
	}, nil)
	if err != nil {
		client.Close()
		return nil, err
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		prefix: "superv:result:",
		ttl:    ttl,
	}, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) SaveResult(ctx context.Context, res *types.TaskResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(res.TaskID), data, s.ttl).Err()
}

func (s *RedisStore) GetResult(ctx context.Context, taskID string) (*types.TaskResult, error) {
	data, err := s.client.Get(ctx, s.key(taskID)).Bytes()
	if err == redis.Nil {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}

	var res types.TaskResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *RedisStore) CountByOutcome(ctx context.Context) (int, int, error) {
	var completed, failed int
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var res types.TaskResult
		if err := json.Unmarshal(data, &res); err != nil {
			continue
		}
		if res.Success {
			completed++
		} else {
			failed++
		}
	}
	if err := iter.Err(); err != nil {
		return 0, 0, err
	}
	return completed, failed, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
