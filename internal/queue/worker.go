package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bookings/backend/internal/metrics"
)

type Handler interface {
	Handle(ctx context.Context, job Job) error
}

type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error {
	return f(ctx, job)
}

const settleTimeout = 5 * time.Second

type WorkerConfig struct {
	Concurrency int
	MaxAttempts int
	PollTimeout time.Duration // raised to MinPollTimeout when shorter
	JobTimeout  time.Duration
}

type Worker struct {
	queue    *RedisQueue
	handlers map[string]Handler
	cfg      WorkerConfig
	log      *slog.Logger
}

func NewWorker(q *RedisQueue, cfg WorkerConfig, log *slog.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.PollTimeout < MinPollTimeout {
		cfg.PollTimeout = MinPollTimeout
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		queue:    q,
		handlers: make(map[string]Handler),
		cfg:      cfg,
		log:      log.With(slog.String("component", "queue.worker")),
	}
}

// Register binds a handler to a job kind. It must be called before Run.
func (w *Worker) Register(kind string, h Handler) {
	w.handlers[kind] = h
}

// Run consumes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started", slog.Int("concurrency", w.cfg.Concurrency), slog.String("queue", w.queue.Key()))

	recovered, err := w.queue.Recover(ctx)
	if err != nil {
		w.log.Error("recover in-flight jobs", slog.Any("err", err))
	} else if recovered > 0 {
		w.log.Warn("in-flight jobs requeued", slog.Int("count", recovered))
	}

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.loop(ctx, id)
		}(i)
	}
	wg.Wait()

	w.log.Info("worker stopped")
	return ctx.Err()
}

func (w *Worker) loop(ctx context.Context, id int) {
	log := w.log.With(slog.Int("worker_id", id))
	for ctx.Err() == nil {
		job, err := w.queue.Dequeue(ctx, w.cfg.PollTimeout)
		if err != nil {
			if errors.Is(err, ErrEmpty) || ctx.Err() != nil {
				continue
			}
			log.Error("dequeue failed", slog.Any("err", err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		w.Process(ctx, job)
	}
}

// Process runs the handler registered for job.Kind and applies the retry
// policy. It is exported for callers that pull jobs themselves.
//
// Queue bookkeeping after the handler runs uses a context detached from ctx,
// so a job interrupted by shutdown is requeued rather than dropped.
func (w *Worker) Process(ctx context.Context, job Job) {
	log := w.log.With(slog.String("job_id", job.ID.String()), slog.String("kind", job.Kind), slog.Int("attempts", job.Attempts))

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	h, ok := w.handlers[job.Kind]
	if !ok {
		log.Error("no handler for job kind")
		metrics.JobsProcessed.WithLabelValues(job.Kind, "unknown").Inc()
		if err := w.queue.Fail(settleCtx, job); err != nil {
			log.Error("move to failed list", slog.Any("err", err))
		}
		return
	}

	start := time.Now()
	err := w.handle(ctx, h, job)
	metrics.JobDuration.WithLabelValues(job.Kind).Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.JobsProcessed.WithLabelValues(job.Kind, "ok").Inc()
		if aerr := w.queue.Ack(settleCtx, job); aerr != nil {
			log.Error("ack failed", slog.Any("err", aerr))
		}
		log.Info("job done")
		return
	}

	if ctx.Err() != nil {
		metrics.JobsProcessed.WithLabelValues(job.Kind, "interrupted").Inc()
		log.Warn("job interrupted by shutdown; requeuing", slog.Any("err", err))
		if rerr := w.queue.Requeue(settleCtx, job); rerr != nil {
			log.Error("requeue failed", slog.Any("err", rerr))
		}
		return
	}

	if job.Attempts+1 < w.cfg.MaxAttempts {
		metrics.JobsProcessed.WithLabelValues(job.Kind, "retry").Inc()
		log.Warn("job failed; retrying", slog.Any("err", err))
		if rerr := w.queue.Retry(settleCtx, job); rerr != nil {
			log.Error("requeue failed", slog.Any("err", rerr))
		}
		return
	}

	metrics.JobsProcessed.WithLabelValues(job.Kind, "failed").Inc()
	log.Error("job failed permanently", slog.Any("err", err))
	if ferr := w.queue.Fail(settleCtx, job); ferr != nil {
		log.Error("move to failed list", slog.Any("err", ferr))
	}
}

func (w *Worker) handle(ctx context.Context, h Handler, job Job) (err error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, job)
}
