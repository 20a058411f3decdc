package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"bookings/backend/internal/auth"
	"bookings/backend/internal/config"
	"bookings/backend/internal/logging"
	"bookings/backend/internal/notify"
	"bookings/backend/internal/queue"
	"bookings/backend/internal/service/appointments"
	"bookings/backend/internal/store/postgres"
	grpcTransport "bookings/backend/internal/transport/grpc"
	httpTransport "bookings/backend/internal/transport/http"
)

const serviceName = "bookings-server"

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

	if cfg.JWTSecret == "" {
		log.Error("auth.jwt_secret is not set")
		os.Exit(1)
	}

	log.Info("starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startupCtx, cancelStartup := context.WithTimeout(ctx, 30*time.Second)
	defer cancelStartup()

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(startupCtx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	if cfg.DBAutoMigrate {
		applied, err := postgres.Migrate(startupCtx, db)
		if err != nil {
			log.Error("database migration failed", slog.Any("err", err))
			os.Exit(1)
		}
		log.Info("database migrated", slog.Any("applied", applied))
	}

	rdb, err := queue.Open(startupCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Error("redis connection failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("redis close failed", slog.Any("err", err))
		}
	}()

	formatter := notify.NewFormatter(cfg.Locale, cfg.Location())
	opts := []appointments.Option{
		appointments.WithLogger(log),
		appointments.WithFilesBaseURL(cfg.FilesBaseURL),
	}
	scheduler := appointments.NewScheduler(
		postgres.NewUserRepo(db),
		postgres.NewAppointmentRepo(db),
		notify.NewLoggingSink(postgres.NewNotificationRepo(db), log),
		formatter,
		opts...,
	)
	canceller := appointments.NewCanceller(
		postgres.NewAppointmentRepo(db),
		queue.NewRedisQueue(rdb, cfg.QueueName, log),
		opts...,
	)
	svc := appointments.NewService(scheduler, canceller)
	verifier := auth.NewVerifier(cfg.JWTSecret)

	limiter := grpcTransport.NewRateLimiter(cfg.GRPCRateLimit, cfg.GRPCRateBurst)
	go limiter.Run(ctx)

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcTransport.DefaultRequestTimeout(cfg.GRPCRequestTimeout),
			limiter.Interceptor(),
			grpcTransport.Auth(verifier),
		),
	)
	grpcTransport.RegisterAppointmentsServiceServer(grpcServer, grpcTransport.NewAppointmentsServer(svc, log))

	httpServer := httpTransport.NewServer(svc, verifier, httpTransport.Config{
		RateLimitMax:   cfg.HTTPRateLimitMax,
		RateWindow:     cfg.HTTPRateWindow,
		RequestTimeout: cfg.GRPCRequestTimeout,
	}, log)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		os.Exit(1)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()
	go func() {
		if err := httpServer.Listen(cfg.HTTPAddr); err != nil {
			errCh <- err
		}
	}()

	log.Info("servers started", slog.String("grpc_addr", cfg.GRPCAddr()), slog.String("http_addr", cfg.HTTPAddr))

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Error("server stopped with error", slog.Any("err", err))
		exitCode = 1
	}

	shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func shutdown(log *slog.Logger, g *grpc.Server, h *httpTransport.Server, timeout time.Duration) {
	log.Info("shutting down", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := h.Shutdown(ctx); err != nil {
		log.Warn("http shutdown failed", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		g.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		g.Stop()
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
