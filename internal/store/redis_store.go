package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benam/api/internal/model"
	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 10

// DefaultTTL keeps a record for a week past the morning it is played on.
const DefaultTTL = 8 * 24 * time.Hour

// RedisStore keeps one JSON record per date under song:<dateKey> and applies
// every update inside a WATCH/MULTI transaction.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

// NewRedisStore creates a store; ttl 0 keeps records forever.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: redisClient, ttl: ttl, now: time.Now}
}

func jobKey(dateKey string) string {
	return fmt.Sprintf("song:%s", dateKey)
}

func (s *RedisStore) apply(ctx context.Context, dateKey string, fn mutation) (*model.Job, error) {
	key := jobKey(dateKey)
	var stored *model.Job

	txf := func(tx *redis.Tx) error {
		current, err := readJob(ctx, tx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		next, err := fn(cloneJob(current), s.now())
		if err != nil {
			stored = current
			return err
		}

		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			stored = next
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrTerminal) {
				return stored, err
			}
			return nil, err
		}
		return stored, nil
	}
	return nil, fmt.Errorf("update %s: too much contention", key)
}

func readJob(ctx context.Context, c redis.Cmdable, key string) (*model.Job, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &job, nil
}

func (s *RedisStore) Create(ctx context.Context, job *model.Job) error {
	_, err := s.apply(ctx, job.DateKey, createRule(job))
	return err
}

func (s *RedisStore) Get(ctx context.Context, dateKey string) (*model.Job, error) {
	return readJob(ctx, s.redis, jobKey(dateKey))
}

func (s *RedisStore) Delete(ctx context.Context, dateKey string) error {
	n, err := s.redis.Del(ctx, jobKey(dateKey)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List scans song:* keys. The keyspace holds one record per day, so a full
// scan stays small.
func (s *RedisStore) List(ctx context.Context) ([]*model.Job, error) {
	var keys []string
	iter := s.redis.Scan(ctx, 0, jobKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan jobs: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	jobs := make([]*model.Job, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // deleted between SCAN and MGET
		}
		var job model.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

func (s *RedisStore) Begin(ctx context.Context, inv *model.Invocation) (*model.Job, error) {
	return s.apply(ctx, inv.DateKey, beginRule(inv))
}

func (s *RedisStore) Checkpoint(ctx context.Context, dateKey, jobID string, progress int, step string) (*model.Job, error) {
	return s.apply(ctx, dateKey, checkpointRule(jobID, progress, step))
}

func (s *RedisStore) Complete(ctx context.Context, dateKey, jobID string, result *model.JobResult) (*model.Job, error) {
	return s.apply(ctx, dateKey, completeRule(jobID, result))
}

func (s *RedisStore) Fail(ctx context.Context, dateKey, jobID, message string) (*model.Job, error) {
	return s.apply(ctx, dateKey, failRule(jobID, message))
}
