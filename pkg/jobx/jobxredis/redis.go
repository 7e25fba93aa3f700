package jobxredis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/Abraxas-365/gatekeeper/pkg/jobx"
	"github.com/Abraxas-365/gatekeeper/pkg/kernel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue implements jobx.Queue backed by Redis lists, a scheduled
// sorted set per queue and one JSON record per job.
type RedisQueue struct {
	rdb       redis.UniversalClient
	prefix    string
	retention time.Duration
	clock     kernel.Clock
}

// Option configures a RedisQueue.
type Option func(*RedisQueue)

// WithPrefix namespaces every key; the default is "jobx".
func WithPrefix(prefix string) Option {
	return func(q *RedisQueue) { q.prefix = prefix }
}

// WithRetention bounds how long finished job records are kept.
func WithRetention(d time.Duration) Option {
	return func(q *RedisQueue) { q.retention = d }
}

func WithClock(c kernel.Clock) Option {
	return func(q *RedisQueue) { q.clock = c }
}

// NewRedisQueue creates a new Redis-backed queue.
func NewRedisQueue(rdb redis.UniversalClient, opts ...Option) *RedisQueue {
	q := &RedisQueue{
		rdb:       rdb,
		prefix:    "jobx",
		retention: 24 * time.Hour,
		clock:     kernel.SystemClock{},
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

func (q *RedisQueue) queueKey(name string) string     { return q.prefix + ":queue:" + name }
func (q *RedisQueue) scheduledKey(name string) string { return q.prefix + ":scheduled:" + name }
func (q *RedisQueue) jobKey(id string) string         { return q.prefix + ":job:" + id }

// Enqueue stores the job record and pushes its ID on the ready list in one pipeline.
func (q *RedisQueue) Enqueue(ctx context.Context, job jobx.Job) (string, error) {
	now := q.clock.Now()
	info := &jobx.JobInfo{
		ID:         uuid.NewString(),
		Type:       job.Type,
		Queue:      job.Queue,
		Payload:    job.Payload,
		Status:     jobx.JobStatusPending,
		MaxRetries: job.MaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	data, err := json.Marshal(info)
	if err != nil {
		return "", redisErrors.NewWithCause(ErrMarshal, err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, q.jobKey(info.ID), data, 0)
	pipe.LPush(ctx, q.queueKey(job.Queue), info.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", redisErrors.NewWithCause(ErrEnqueue, err).WithDetail("queue", job.Queue)
	}
	return info.ID, nil
}

// GetJob retrieves job info by ID.
func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*jobx.JobInfo, error) {
	data, err := q.rdb.Get(ctx, q.jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, redisErrors.New(ErrNotFound).WithDetail("job_id", jobID)
	}
	if err != nil {
		return nil, redisErrors.NewWithCause(ErrUpdate, err).WithDetail("job_id", jobID)
	}

	var info jobx.JobInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, redisErrors.NewWithCause(ErrUnmarshal, err).WithDetail("job_id", jobID)
	}
	return &info, nil
}

// Dequeue blocks until a job is available or the timeout expires. A nil job
// with a nil error means nothing arrived.
func (q *RedisQueue) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*jobx.JobInfo, error) {
	keys := make([]string, len(queues))
	for i, name := range queues {
		keys[i] = q.queueKey(name)
	}

	result, err := q.rdb.BRPop(ctx, timeout, keys...).Result()
	if errors.Is(err, redis.Nil) || ctx.Err() != nil {
		return nil, nil
	}
	if err != nil {
		return nil, redisErrors.NewWithCause(ErrDequeue, err)
	}

	// result[0] = key, result[1] = job ID
	return q.update(ctx, result[1], 0, (*jobx.JobInfo).Start)
}

// Complete marks a job as done; the record then expires after the retention window.
func (q *RedisQueue) Complete(ctx context.Context, jobID string) error {
	_, err := q.update(ctx, jobID, q.retention, (*jobx.JobInfo).Succeed)
	return err
}

// Fail records the failure and reports whether attempts remain.
func (q *RedisQueue) Fail(ctx context.Context, jobID string, errMsg string) (bool, error) {
	var retry bool
	info, err := q.update(ctx, jobID, 0, func(info *jobx.JobInfo) {
		retry = info.Failed(errMsg)
	})
	if err != nil {
		return false, err
	}
	if info.Status.Terminal() {
		// keep the failed record around for inspection, but not forever
		_ = q.rdb.Expire(ctx, q.jobKey(jobID), q.retention).Err()
	}
	return retry, nil
}

// Retry schedules the job to become ready again after delay.
func (q *RedisQueue) Retry(ctx context.Context, jobID string, delay time.Duration) error {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	score := float64(q.clock.Now().Add(delay).Unix())
	if err := q.rdb.ZAdd(ctx, q.scheduledKey(info.Queue), redis.Z{Score: score, Member: jobID}).Err(); err != nil {
		return redisErrors.NewWithCause(ErrUpdate, err).WithDetail("job_id", jobID)
	}
	return nil
}

// promoteScript moves due members of the scheduled set onto the ready list atomically.
var promoteScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(ids) do
    redis.call('LPUSH', KEYS[2], id)
end
if #ids > 0 then
    redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
end
return #ids
`)

func (q *RedisQueue) PromoteScheduled(ctx context.Context, queues []string) error {
	now := strconv.FormatInt(q.clock.Now().Unix(), 10)
	for _, name := range queues {
		err := promoteScript.Run(ctx, q.rdb, []string{q.scheduledKey(name), q.queueKey(name)}, now).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return redisErrors.NewWithCause(ErrPromote, err).WithDetail("queue", name)
		}
	}
	return nil
}

func (q *RedisQueue) update(ctx context.Context, jobID string, ttl time.Duration, mutate func(*jobx.JobInfo)) (*jobx.JobInfo, error) {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	mutate(info)
	info.UpdatedAt = q.clock.Now()

	data, err := json.Marshal(info)
	if err != nil {
		return nil, redisErrors.NewWithCause(ErrMarshal, err).WithDetail("job_id", jobID)
	}
	if err := q.rdb.Set(ctx, q.jobKey(jobID), data, ttl).Err(); err != nil {
		return nil, redisErrors.NewWithCause(ErrUpdate, err).WithDetail("job_id", jobID)
	}
	return info, nil
}
