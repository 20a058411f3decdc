package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bookings/backend/internal/domain"
	"bookings/backend/internal/jobs"
	"bookings/backend/internal/metrics"
	"bookings/backend/internal/store"
)

type JobQueue interface {
	Enqueue(ctx context.Context, kind string, payload any) error
}

type Canceller struct {
	repo  store.AppointmentRepository
	queue JobQueue
	opts  options
}

func NewCanceller(repo store.AppointmentRepository, queue JobQueue, opts ...Option) *Canceller {
	return &Canceller{
		repo:  repo,
		queue: queue,
		opts:  buildOptions(opts),
	}
}

func (c *Canceller) CancelAppointment(ctx context.Context, requesterID, appointmentID int64) (domain.Appointment, error) {
	appt, err := c.cancelAppointment(ctx, requesterID, appointmentID)
	if err != nil {
		countRejection("cancel", err)
		return domain.Appointment{}, err
	}
	metrics.AppointmentsCancelled.Inc()
	return appt, nil
}

func (c *Canceller) cancelAppointment(ctx context.Context, requesterID, appointmentID int64) (domain.Appointment, error) {
	if appointmentID <= 0 {
		return domain.Appointment{}, validationError("appointment_id", "appointment_id must be a positive integer")
	}

	appt, err := c.repo.FindByID(ctx, appointmentID, true)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, notFoundError(msgNotFound)
		}
		return domain.Appointment{}, fmt.Errorf("find appointment: %w", err)
	}

	if appt.ClientID != requesterID {
		return domain.Appointment{}, forbiddenError(msgNotOwner)
	}
	if !appt.IsActive() {
		return domain.Appointment{}, conflictError(msgAlreadyCancelled)
	}

	now := c.opts.now()
	if !appt.IsCancelable(now) {
		return domain.Appointment{}, forbiddenError(msgWindowElapsed)
	}

	canceledAt := now.UTC()
	appt.CanceledAt = &canceledAt

	updated, err := c.repo.Update(ctx, appt)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return domain.Appointment{}, conflictError(msgAlreadyCancelled)
		case errors.Is(err, store.ErrNotFound):
			return domain.Appointment{}, notFoundError(msgNotFound)
		}
		return domain.Appointment{}, fmt.Errorf("update appointment: %w", err)
	}
	// The store returns the row without its joins; the job needs them.
	updated.Provider = appt.Provider
	updated.Client = appt.Client

	// Fire and forget: the cancellation is committed whatever the queue says.
	_ = c.queue.Enqueue(ctx, jobs.CancellationMailKind, jobs.CancellationMailPayload{Appointment: updated})

	c.opts.log.Debug("appointment cancelled",
		slog.Int64("appointment_id", updated.ID),
		slog.Time("canceled_at", canceledAt),
	)
	return updated, nil
}
