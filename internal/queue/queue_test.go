package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	AppointmentID int64 `json:"appointment_id"`
}

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(client, "test", slog.Default()), mr
}

func TestRedisQueue_EnqueueDequeueFIFO(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "CancellationMail", testPayload{AppointmentID: 1}))
	require.NoError(t, q.Enqueue(ctx, "CancellationMail", testPayload{AppointmentID: 2}))

	first, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	second, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	var p1, p2 testPayload
	require.NoError(t, first.Decode(&p1))
	require.NoError(t, second.Decode(&p2))
	assert.Equal(t, int64(1), p1.AppointmentID)
	assert.Equal(t, int64(2), p2.AppointmentID)
	assert.Equal(t, "CancellationMail", first.Kind)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Zero(t, first.Attempts)
	assert.False(t, first.EnqueuedAt.IsZero())
}

func TestRedisQueue_DequeueEmpty(t *testing.T) {
	q, _ := newTestQueue(t)

	_, err := q.Dequeue(context.Background(), 100*time.Millisecond)
	assert.True(t, errors.Is(err, ErrEmpty), "err = %v, want ErrEmpty", err)
}

func TestRedisQueue_EnqueueRejectsUnencodablePayload(t *testing.T) {
	q, mr := newTestQueue(t)

	err := q.Enqueue(context.Background(), "CancellationMail", func() {})
	require.Error(t, err)
	assert.False(t, mr.Exists(q.Key()))
}

func TestWorker_ProcessSuccess(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	var got testPayload
	w := NewWorker(q, WorkerConfig{MaxAttempts: 3}, slog.Default())
	w.Register("CancellationMail", HandlerFunc(func(ctx context.Context, job Job) error {
		return job.Decode(&got)
	}))

	w.Process(ctx, Job{Kind: "CancellationMail", Payload: json.RawMessage(`{"appointment_id":7}`)})

	assert.Equal(t, int64(7), got.AppointmentID)
	assert.False(t, mr.Exists(q.Key()))
	assert.False(t, mr.Exists(q.FailedKey()))
}

func TestWorker_ProcessRetriesThenFails(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	calls := 0
	w := NewWorker(q, WorkerConfig{MaxAttempts: 2}, slog.Default())
	w.Register("CancellationMail", HandlerFunc(func(ctx context.Context, job Job) error {
		calls++
		return errors.New("smtp down")
	}))

	w.Process(ctx, Job{Kind: "CancellationMail", Payload: json.RawMessage(`{}`)})
	require.Equal(t, 1, calls)

	retried, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, retried.Attempts)

	w.Process(ctx, retried)
	require.Equal(t, 2, calls)

	items, err := mr.List(q.FailedKey())
	require.NoError(t, err)
	require.Len(t, items, 1)

	var failed Job
	require.NoError(t, json.Unmarshal([]byte(items[0]), &failed))
	assert.Equal(t, 2, failed.Attempts)
	assert.False(t, mr.Exists(q.Key()))
	assert.False(t, mr.Exists(q.ProcessingKey()))
}

func TestWorker_ProcessRecoversPanic(t *testing.T) {
	q, mr := newTestQueue(t)

	w := NewWorker(q, WorkerConfig{MaxAttempts: 1}, slog.Default())
	w.Register("CancellationMail", HandlerFunc(func(ctx context.Context, job Job) error {
		panic("boom")
	}))

	w.Process(context.Background(), Job{Kind: "CancellationMail"})
	assert.True(t, mr.Exists(q.FailedKey()))
}

func TestWorker_UnknownKindGoesToFailedList(t *testing.T) {
	q, mr := newTestQueue(t)

	w := NewWorker(q, WorkerConfig{}, slog.Default())
	w.Process(context.Background(), Job{Kind: "Unknown"})

	assert.True(t, mr.Exists(q.FailedKey()))
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	w := NewWorker(q, WorkerConfig{Concurrency: 1, MaxAttempts: 1, PollTimeout: 100 * time.Millisecond}, slog.Default())
	w.Register("CancellationMail", HandlerFunc(func(ctx context.Context, job Job) error {
		close(done)
		return nil
	}))

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	require.NoError(t, q.Enqueue(context.Background(), "CancellationMail", testPayload{AppointmentID: 1}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not processed")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRedisQueue_DequeueHoldsJobUntilAck(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "CancellationMail", testPayload{AppointmentID: 1}))

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.False(t, mr.Exists(q.Key()))

	inFlight, err := mr.List(q.ProcessingKey())
	require.NoError(t, err)
	require.Len(t, inFlight, 1)

	require.NoError(t, q.Ack(ctx, job))
	assert.False(t, mr.Exists(q.ProcessingKey()))
}

func TestRedisQueue_DequeueParksUndecodableEntry(t *testing.T) {
	q, mr := newTestQueue(t)

	_, err := mr.Lpush(q.Key(), "not-json")
	require.NoError(t, err)

	_, err = q.Dequeue(context.Background(), time.Second)
	require.Error(t, err)

	failed, err := mr.List(q.FailedKey())
	require.NoError(t, err)
	assert.Equal(t, []string{"not-json"}, failed)
	assert.False(t, mr.Exists(q.ProcessingKey()))
}

func TestRedisQueue_RecoverRequeuesInFlightJobs(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "CancellationMail", testPayload{AppointmentID: 1}))
	require.NoError(t, q.Enqueue(ctx, "CancellationMail", testPayload{AppointmentID: 2}))
	_, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	n, err := q.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, mr.Exists(q.ProcessingKey()))

	first, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	var p testPayload
	require.NoError(t, first.Decode(&p))
	assert.Equal(t, int64(1), p.AppointmentID)
}

func TestNewWorker_RaisesShortPollTimeout(t *testing.T) {
	q, _ := newTestQueue(t)

	w := NewWorker(q, WorkerConfig{PollTimeout: 100 * time.Millisecond}, slog.Default())
	assert.Equal(t, MinPollTimeout, w.cfg.PollTimeout)
}

func TestWorker_ShutdownMidJobRequeues(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	w := NewWorker(q, WorkerConfig{Concurrency: 1, MaxAttempts: 3}, slog.Default())
	w.Register("CancellationMail", HandlerFunc(func(ctx context.Context, job Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	require.NoError(t, q.Enqueue(context.Background(), "CancellationMail", testPayload{AppointmentID: 9}))

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not picked up")
	}
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	items, err := mr.List(q.Key())
	require.NoError(t, err)
	require.Len(t, items, 1)

	var job Job
	require.NoError(t, json.Unmarshal([]byte(items[0]), &job))
	assert.Zero(t, job.Attempts)
	var p testPayload
	require.NoError(t, job.Decode(&p))
	assert.Equal(t, int64(9), p.AppointmentID)

	assert.False(t, mr.Exists(q.ProcessingKey()))
	assert.False(t, mr.Exists(q.FailedKey()))
}
