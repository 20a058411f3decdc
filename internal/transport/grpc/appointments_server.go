package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"bookings/backend/internal/auth"
	"bookings/backend/internal/domain"
	"bookings/backend/internal/service/appointments"
)

type AppointmentsServer struct {
	svc appointmentsService
	log *slog.Logger
}

type appointmentsService interface {
	RequestAppointment(ctx context.Context, in appointments.RequestInput) (domain.Appointment, error)
	ListAppointments(ctx context.Context, userID int64, page int) ([]appointments.Summary, error)
	CancelAppointment(ctx context.Context, requesterID, appointmentID int64) (domain.Appointment, error)
}

func NewAppointmentsServer(svc appointmentsService, log *slog.Logger) *AppointmentsServer {
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentsServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.appointments")),
	}
}

func (s *AppointmentsServer) ListAppointments(ctx context.Context, req *ListAppointmentsRequest) (*ListAppointmentsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListAppointments"))

	userID, ok := auth.UserIDFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "token not provided")
	}
	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	page := req.Page
	if page == 0 {
		page = 1
	}

	list, err := s.svc.ListAppointments(ctx, userID, page)
	if err != nil {
		return nil, s.statusFor(log, err, slog.Int64("user_id", userID))
	}

	log.Debug("appointments listed", slog.Int64("user_id", userID), slog.Int("page", page), slog.Int("count", len(list)))
	return &ListAppointmentsResponse{Appointments: list}, nil
}

func (s *AppointmentsServer) CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*CreateAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateAppointment"))

	userID, ok := auth.UserIDFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "token not provided")
	}
	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	appt, err := s.svc.RequestAppointment(ctx, appointments.RequestInput{
		RequesterID: userID,
		ProviderID:  req.ProviderID,
		Date:        req.Date,
	})
	if err != nil {
		return nil, s.statusFor(log, err,
			slog.Int64("user_id", userID),
			slog.Int64("provider_id", req.ProviderID),
			slog.String("date", req.Date),
		)
	}

	log.Info(
		"appointment created",
		slog.Int64("appointment_id", appt.ID),
		slog.Int64("user_id", appt.ClientID),
		slog.Int64("provider_id", appt.ProviderID),
		slog.Time("date", appt.Date),
	)
	return &CreateAppointmentResponse{Appointment: toAppointment(appt)}, nil
}

func (s *AppointmentsServer) CancelAppointment(ctx context.Context, req *CancelAppointmentRequest) (*CancelAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "CancelAppointment"))

	userID, ok := auth.UserIDFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "token not provided")
	}
	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	appt, err := s.svc.CancelAppointment(ctx, userID, req.AppointmentID)
	if err != nil {
		return nil, s.statusFor(log, err, slog.Int64("user_id", userID), slog.Int64("appointment_id", req.AppointmentID))
	}

	log.Info("appointment cancelled", slog.Int64("appointment_id", appt.ID), slog.Int64("user_id", userID))
	return &CancelAppointmentResponse{Appointment: toAppointment(appt)}, nil
}

// statusFor maps service errors to gRPC status codes and logs them at a level
// matching their cause.
func (s *AppointmentsServer) statusFor(log *slog.Logger, err error, attrs ...any) error {
	var (
		vErr *appointments.ValidationError
		fErr *appointments.ForbiddenError
		cErr *appointments.ConflictError
		nErr *appointments.NotFoundError
	)
	args := append([]any{slog.Any("err", err)}, attrs...)
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", args...)
		return withDetails(status.New(codes.InvalidArgument, vErr.Error()), &errdetails.BadRequest{
			FieldViolations: []*errdetails.BadRequest_FieldViolation{
				{Field: vErr.Field(), Description: vErr.Error()},
			},
		})
	case errors.As(err, &fErr):
		log.Info("request forbidden", args...)
		return status.Error(codes.PermissionDenied, fErr.Error())
	case errors.As(err, &cErr):
		log.Info("request conflict", args...)
		return status.Error(codes.FailedPrecondition, cErr.Error())
	case errors.As(err, &nErr):
		log.Info("appointment not found", args...)
		return status.Error(codes.NotFound, nErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request timed out", args...)
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}
	log.Error("request failed", args...)
	return status.Error(codes.Internal, "internal error")
}
