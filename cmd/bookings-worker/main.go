package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookings/backend/internal/config"
	"bookings/backend/internal/jobs"
	"bookings/backend/internal/logging"
	"bookings/backend/internal/notify"
	"bookings/backend/internal/queue"
)

const serviceName = "bookings-worker"

func main() {
	log := logging.New(os.Stdout, serviceName, "info")
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = logging.New(os.Stdout, serviceName, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancelDial := context.WithTimeout(ctx, 10*time.Second)
	rdb, err := queue.Open(dialCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	cancelDial()
	if err != nil {
		log.Error("redis connection failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("redis close failed", slog.Any("err", err))
		}
	}()

	w := queue.NewWorker(queue.NewRedisQueue(rdb, cfg.QueueName, log), queue.WorkerConfig{
		Concurrency: cfg.WorkerConcurrency,
		MaxAttempts: cfg.WorkerMaxAttempts,
		PollTimeout: cfg.WorkerPollTimeout,
		JobTimeout:  cfg.WorkerJobTimeout,
	}, log)

	formatter := notify.NewFormatter(cfg.Locale, cfg.Location())
	w.Register(jobs.CancellationMailKind, jobs.NewCancellationMail(jobs.NewLogMailer(log), formatter))

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("worker stopped")
}
