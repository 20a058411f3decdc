package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"bookings/backend/internal/metrics"
)

// ErrEmpty is returned by Dequeue when no job arrived before the timeout.
var ErrEmpty = errors.New("queue empty")

type Job struct {
	ID         uuid.UUID       `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Attempts   int             `json:"attempts"`

	raw string
}

// Decode unmarshals the job payload into v.
func (j Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

// RedisQueue is a FIFO job list: producers LPUSH, consumers BLMOVE the oldest
// job onto "<name>:processing" until it is acknowledged. Jobs that exhaust
// their attempts are moved to the "<name>:failed" list.
type RedisQueue struct {
	client *redis.Client
	key    string
	log    *slog.Logger
	now    func() time.Time
}

func NewRedisQueue(client *redis.Client, name string, log *slog.Logger) *RedisQueue {
	if log == nil {
		log = slog.Default()
	}
	return &RedisQueue{
		client: client,
		key:    "bookings:queue:" + name,
		log:    log.With(slog.String("component", "queue"), slog.String("queue", name)),
		now:    time.Now,
	}
}

func (q *RedisQueue) Key() string {
	return q.key
}

func (q *RedisQueue) FailedKey() string {
	return q.key + ":failed"
}

func (q *RedisQueue) ProcessingKey() string {
	return q.key + ":processing"
}

// Enqueue submits a new job. Failures are logged here; callers treat the
// submission as fire-and-forget.
func (q *RedisQueue) Enqueue(ctx context.Context, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	job := Job{
		ID:         id,
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: q.now().UTC(),
	}
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode %s job: %w", kind, err)
	}
	if err := q.client.LPush(ctx, q.key, b).Err(); err != nil {
		metrics.SideEffectFailures.WithLabelValues("enqueue").Inc()
		q.log.Error("job enqueue failed", slog.Any("err", err), slog.String("kind", kind))
		return err
	}
	q.log.Debug("job enqueued", slog.String("job_id", job.ID.String()), slog.String("kind", kind))
	return nil
}

// MinPollTimeout is the smallest blocking timeout Redis accepts; shorter
// values are raised to it.
const MinPollTimeout = time.Second

// Dequeue blocks up to timeout for the oldest job and moves it onto the
// processing list, where it stays until Ack, Retry, Fail or Requeue.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (Job, error) {
	if timeout < MinPollTimeout {
		timeout = MinPollTimeout
	}
	raw, err := q.client.BLMove(ctx, q.key, q.ProcessingKey(), "RIGHT", "LEFT", timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Job{}, ErrEmpty
		}
		return Job{}, err
	}
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// park undecodable entries on the failed list
		if _, perr := q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.LPush(ctx, q.FailedKey(), raw)
			p.LRem(ctx, q.ProcessingKey(), 1, raw)
			return nil
		}); perr != nil {
			q.log.Error("park undecodable job", slog.Any("err", perr))
		}
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	job.raw = raw
	return job, nil
}

// Ack drops a finished job from the processing list.
func (q *RedisQueue) Ack(ctx context.Context, job Job) error {
	if job.raw == "" {
		return nil
	}
	return q.client.LRem(ctx, q.ProcessingKey(), 1, job.raw).Err()
}

// Retry puts the job back on the queue with its attempt count incremented.
func (q *RedisQueue) Retry(ctx context.Context, job Job) error {
	job.Attempts++
	return q.handOff(ctx, job, func(p redis.Pipeliner, b []byte) {
		p.LPush(ctx, q.key, b)
	})
}

func (q *RedisQueue) Fail(ctx context.Context, job Job) error {
	job.Attempts++
	return q.handOff(ctx, job, func(p redis.Pipeliner, b []byte) {
		p.LPush(ctx, q.FailedKey(), b)
	})
}

// Requeue returns an interrupted job to the head of the queue without
// counting an attempt.
func (q *RedisQueue) Requeue(ctx context.Context, job Job) error {
	return q.handOff(ctx, job, func(p redis.Pipeliner, b []byte) {
		p.RPush(ctx, q.key, b)
	})
}

// Recover moves jobs left on the processing list by a stopped consumer back
// to the head of the queue. Call it before any consumer of this queue starts.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.ProcessingKey(), q.key, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// handOff pushes job with push and removes its processing entry in one
// MULTI/EXEC.
func (q *RedisQueue) handOff(ctx context.Context, job Job, push func(p redis.Pipeliner, b []byte)) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		push(p, b)
		if job.raw != "" {
			p.LRem(ctx, q.ProcessingKey(), 1, job.raw)
		}
		return nil
	})
	return err
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}
