package grpc

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"bookings/backend/internal/auth"
	"bookings/backend/internal/domain"
	"bookings/backend/internal/service/appointments"
)

type fakeAppointmentsService struct {
	requestFn func(ctx context.Context, in appointments.RequestInput) (domain.Appointment, error)
	listFn    func(ctx context.Context, userID int64, page int) ([]appointments.Summary, error)
	cancelFn  func(ctx context.Context, requesterID, appointmentID int64) (domain.Appointment, error)
}

func (f *fakeAppointmentsService) RequestAppointment(ctx context.Context, in appointments.RequestInput) (domain.Appointment, error) {
	if f.requestFn == nil {
		panic("RequestAppointment not configured")
	}
	return f.requestFn(ctx, in)
}

func (f *fakeAppointmentsService) ListAppointments(ctx context.Context, userID int64, page int) ([]appointments.Summary, error) {
	if f.listFn == nil {
		panic("ListAppointments not configured")
	}
	return f.listFn(ctx, userID, page)
}

func (f *fakeAppointmentsService) CancelAppointment(ctx context.Context, requesterID, appointmentID int64) (domain.Appointment, error) {
	if f.cancelFn == nil {
		panic("CancelAppointment not configured")
	}
	return f.cancelFn(ctx, requesterID, appointmentID)
}

func userCtx(id int64) context.Context {
	return auth.WithUserID(context.Background(), id)
}

func TestCreateAppointment_RequiresCaller(t *testing.T) {
	srv := NewAppointmentsServer(&fakeAppointmentsService{}, slog.Default())

	_, err := srv.CreateAppointment(context.Background(), &CreateAppointmentRequest{ProviderID: 1, Date: "2030-01-01T10:00:00Z"})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.Unauthenticated)
	}
}

func TestCreateAppointment_PassesCallerAsRequester(t *testing.T) {
	var got appointments.RequestInput
	date := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	srv := NewAppointmentsServer(&fakeAppointmentsService{
		requestFn: func(ctx context.Context, in appointments.RequestInput) (domain.Appointment, error) {
			got = in
			return domain.Appointment{ID: 9, ClientID: in.RequesterID, ProviderID: in.ProviderID, Date: date}, nil
		},
	}, slog.Default())

	resp, err := srv.CreateAppointment(userCtx(3), &CreateAppointmentRequest{ProviderID: 5, Date: "2030-01-01T10:20:00Z"})
	if err != nil {
		t.Fatalf("CreateAppointment error: %v", err)
	}
	if got.RequesterID != 3 || got.ProviderID != 5 || got.Date != "2030-01-01T10:20:00Z" {
		t.Fatalf("input = %+v", got)
	}
	if resp.Appointment.ID != 9 || !resp.Appointment.Date.Equal(date) {
		t.Fatalf("response = %+v", resp.Appointment)
	}
}

func TestCreateAppointment_MapsServiceErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"validation", &appointments.ValidationError{}, codes.InvalidArgument},
		{"forbidden", &appointments.ForbiddenError{}, codes.PermissionDenied},
		{"conflict", &appointments.ConflictError{}, codes.FailedPrecondition},
		{"not found", &appointments.NotFoundError{}, codes.NotFound},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"internal", errors.New("db down"), codes.Internal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewAppointmentsServer(&fakeAppointmentsService{
				requestFn: func(ctx context.Context, in appointments.RequestInput) (domain.Appointment, error) {
					return domain.Appointment{}, tc.err
				},
			}, slog.Default())

			_, err := srv.CreateAppointment(userCtx(1), &CreateAppointmentRequest{ProviderID: 2, Date: "2030-01-01T10:00:00Z"})
			if status.Code(err) != tc.want {
				t.Fatalf("code = %s, want %s", status.Code(err), tc.want)
			}
		})
	}
}

func TestListAppointments_DefaultsPage(t *testing.T) {
	var gotPage int
	srv := NewAppointmentsServer(&fakeAppointmentsService{
		listFn: func(ctx context.Context, userID int64, page int) ([]appointments.Summary, error) {
			gotPage = page
			return []appointments.Summary{{ID: 1}}, nil
		},
	}, slog.Default())

	resp, err := srv.ListAppointments(userCtx(1), &ListAppointmentsRequest{})
	if err != nil {
		t.Fatalf("ListAppointments error: %v", err)
	}
	if gotPage != 1 {
		t.Fatalf("page = %d, want 1", gotPage)
	}
	if len(resp.Appointments) != 1 {
		t.Fatalf("len = %d, want 1", len(resp.Appointments))
	}
}

func TestCancelAppointment_MapsForbidden(t *testing.T) {
	srv := NewAppointmentsServer(&fakeAppointmentsService{
		cancelFn: func(ctx context.Context, requesterID, appointmentID int64) (domain.Appointment, error) {
			return domain.Appointment{}, &appointments.ForbiddenError{}
		},
	}, slog.Default())

	_, err := srv.CancelAppointment(userCtx(1), &CancelAppointmentRequest{AppointmentID: 4})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.PermissionDenied)
	}
}

func TestCancelAppointment_RejectsNilRequest(t *testing.T) {
	srv := NewAppointmentsServer(&fakeAppointmentsService{}, slog.Default())

	_, err := srv.CancelAppointment(userCtx(1), nil)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}
