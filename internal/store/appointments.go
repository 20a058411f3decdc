package store

import (
	"context"
	"time"

	"bookings/backend/internal/domain"
)

// DefaultPageSize is the number of appointments returned per listing page.
const DefaultPageSize = 20

type AppointmentRepository interface {
	Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	// FindByID returns ErrNotFound when no row matches. withJoins loads the
	// provider and client users.
	FindByID(ctx context.Context, id int64, withJoins bool) (domain.Appointment, error)
	// FindActiveByProviderAndDate returns ErrNotFound when the slot is free.
	FindActiveByProviderAndDate(ctx context.Context, providerID int64, date time.Time) (domain.Appointment, error)
	Update(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	ListActiveByClient(ctx context.Context, clientID int64, page, pageSize int) ([]domain.Appointment, error)
}

type UserDirectory interface {
	// FindByID returns ErrNotFound when no user has the id.
	FindByID(ctx context.Context, id int64) (domain.User, error)
}

type NotificationSink interface {
	Create(ctx context.Context, n domain.Notification) error
}
