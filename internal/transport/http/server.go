package http

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookings/backend/internal/domain"
	"bookings/backend/internal/service/appointments"
)

const userIDLocal = "user_id"

type appointmentsService interface {
	RequestAppointment(ctx context.Context, in appointments.RequestInput) (domain.Appointment, error)
	ListAppointments(ctx context.Context, userID int64, page int) ([]appointments.Summary, error)
	CancelAppointment(ctx context.Context, requesterID, appointmentID int64) (domain.Appointment, error)
}

type tokenVerifier interface {
	UserID(raw string) (int64, error)
}

type Config struct {
	RateLimitMax   int
	RateWindow     time.Duration
	RequestTimeout time.Duration
}

// Server exposes the appointment operations as JSON over HTTP.
type Server struct {
	app *fiber.App
	svc appointmentsService
	log *slog.Logger
	cfg Config
}

func NewServer(svc appointmentsService, verifier tokenVerifier, cfg Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	s := &Server{
		svc: svc,
		log: log.With(slog.String("component", "http.appointments")),
		cfg: cfg,
	}
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := s.app.Group("/appointments", requireUser(verifier))
	if cfg.RateLimitMax > 0 {
		api.Use(rateLimit(cfg.RateLimitMax, cfg.RateWindow))
	}
	api.Get("/", s.listAppointments)
	api.Post("/", s.createAppointment)
	api.Delete("/:id", s.cancelAppointment)

	return s
}

// App returns the underlying fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func requireUser(v tokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if header == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "token not provided")
		}
		uid, err := v.UserID(header)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "token invalid")
		}
		c.Locals(userIDLocal, uid)
		return c.Next()
	}
}

func rateLimit(max int, window time.Duration) fiber.Handler {
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if uid, ok := c.Locals(userIDLocal).(int64); ok && uid > 0 {
				return "user:" + strconv.FormatInt(uid, 10)
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
		},
	})
}

func userID(c *fiber.Ctx) int64 {
	uid, _ := c.Locals(userIDLocal).(int64)
	return uid
}

// errorHandler maps service errors to status codes with an {"error": msg} body.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var (
		fErr *fiber.Error
		vErr *appointments.ValidationError
		pErr *appointments.ForbiddenError
		cErr *appointments.ConflictError
		nErr *appointments.NotFoundError
	)
	code, msg := fiber.StatusInternalServerError, "internal error"
	switch {
	case errors.As(err, &fErr):
		code, msg = fErr.Code, fErr.Message
	case errors.As(err, &vErr):
		code, msg = fiber.StatusBadRequest, vErr.Error()
	case errors.As(err, &pErr):
		code, msg = fiber.StatusForbidden, pErr.Error()
	case errors.As(err, &cErr):
		code, msg = fiber.StatusConflict, cErr.Error()
	case errors.As(err, &nErr):
		code, msg = fiber.StatusNotFound, nErr.Error()
	case errors.Is(err, context.DeadlineExceeded):
		code, msg = fiber.StatusGatewayTimeout, "request timed out"
	}

	attrs := []any{
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Int("status", code),
		slog.Any("err", err),
	}
	if code >= fiber.StatusInternalServerError {
		s.log.Error("request failed", attrs...)
	} else {
		s.log.Info("request rejected", attrs...)
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
