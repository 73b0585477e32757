package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
)

const redisKeyPrefix = "batchjobs:"

// redisQueueKey returns the list key of a queue: batchjobs:queue:{name}
func redisQueueKey(name string) string { return redisKeyPrefix + "queue:" + name }

// redisPoisonKey returns the list holding payloads of a queue that could
// not be decoded: batchjobs:queue:{name}:poison
func redisPoisonKey(name string) string { return redisQueueKey(name) + ":poison" }

// ErrCorruptJob is returned by RedisQueue.Pop for a payload that is not a
// valid job. The raw payload is kept in the queue's poison list.
var ErrCorruptJob = errors.New("storage/redis: corrupt job payload")

// ErrInvalidRedisURL is returned by OpenRedis for URLs it cannot use.
var ErrInvalidRedisURL = errors.New("storage: invalid redis url (expected redis:// or rediss://)")

// OpenRedis connects to the Redis server at url and pings it.
func OpenRedis(ctx context.Context, url string) (redis.UniversalClient, error) {
	if !strings.HasPrefix(url, "redis://") && !strings.HasPrefix(url, "rediss://") {
		return nil, ErrInvalidRedisURL
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrInvalidRedisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: ping redis: %w", err)
	}
	return client, nil
}

// RedisQueue implements core.Queue as a Redis list of JSON-encoded jobs.
// Push appends with RPUSH and Pop removes with LPOP, so Pop is atomic across
// any number of processes.
type RedisQueue struct {
	client    redis.UniversalClient
	name      string
	key       string
	poisonKey string
}

// NewRedisQueue creates a queue named name on client. An empty name means
// "default".
func NewRedisQueue(client redis.UniversalClient, name string) *RedisQueue {
	if name == "" {
		name = "default"
	}
	return &RedisQueue{
		client:    client,
		name:      name,
		key:       redisQueueKey(name),
		poisonKey: redisPoisonKey(name),
	}
}

// Name returns the queue name.
func (q *RedisQueue) Name() string {
	return q.name
}

// Push appends job to the list. It assigns an ID, timestamps and empty
// params when missing, and stamps the queue name on the job.
func (q *RedisQueue) Push(ctx context.Context, job *core.Job) error {
	if job == nil || job.Handler == "" {
		return core.ErrEmptyHandler
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.Before(job.CreatedAt) {
		job.UpdatedAt = job.CreatedAt
	}
	if job.Params == nil {
		job.Params = core.Params{}
	}
	job.Queue = q.name

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("storage/redis: encode job %s: %w", job.ID, err)
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("storage/redis: push: %w", err)
	}
	return nil
}

// Pop removes and returns the head of the list, or core.ErrQueueEmpty.
func (q *RedisQueue) Pop(ctx context.Context) (*core.Job, error) {
	payload, err := q.client.LPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("storage/redis: pop: %w", err)
	}

	job, decodeErr := decodeRedisJob(payload)
	if decodeErr == nil {
		return job, nil
	}
	if err := q.client.RPush(ctx, q.poisonKey, payload).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("%w: %w", ErrCorruptJob, decodeErr),
			fmt.Errorf("storage/redis: keep poison payload: %w", err))
	}
	return nil, fmt.Errorf("%w: %w", ErrCorruptJob, decodeErr)
}

// Poisoned returns up to limit raw payloads that Pop could not decode,
// oldest first. A limit <= 0 returns all of them.
func (q *RedisQueue) Poisoned(ctx context.Context, limit int) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	payloads, err := q.client.LRange(ctx, q.poisonKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("storage/redis: poisoned: %w", err)
	}
	return payloads, nil
}

// Count returns the number of queued jobs.
func (q *RedisQueue) Count(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("storage/redis: count: %w", err)
	}
	return n, nil
}

// List returns up to limit jobs in pop order without removing them.
// A limit <= 0 returns every job.
func (q *RedisQueue) List(ctx context.Context, limit int) ([]*core.Job, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	payloads, err := q.client.LRange(ctx, q.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("storage/redis: list: %w", err)
	}

	jobs := make([]*core.Job, 0, len(payloads))
	for _, p := range payloads {
		job, err := decodeRedisJob([]byte(p))
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Ping checks the connection to Redis.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func decodeRedisJob(payload []byte) (*core.Job, error) {
	var job core.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("storage/redis: decode job: %w", err)
	}
	if job.Params == nil {
		job.Params = core.Params{}
	}
	return &job, nil
}
