package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookings/backend/internal/domain"
	"bookings/backend/internal/metrics"
	"bookings/backend/internal/notify"
	"bookings/backend/internal/store"
)

// Layouts accepted for the requested date, tried in order. Layouts without a
// zone are read in the scheduler's location.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

type Scheduler struct {
	users     store.UserDirectory
	repo      store.AppointmentRepository
	sink      store.NotificationSink
	formatter *notify.Formatter
	opts      options
}

func NewScheduler(users store.UserDirectory, repo store.AppointmentRepository, sink store.NotificationSink, formatter *notify.Formatter, opts ...Option) *Scheduler {
	if formatter == nil {
		formatter = notify.NewFormatter("", nil)
	}
	return &Scheduler{
		users:     users,
		repo:      repo,
		sink:      sink,
		formatter: formatter,
		opts:      buildOptions(opts),
	}
}

type RequestInput struct {
	RequesterID int64
	ProviderID  int64
	Date        string
}

func (s *Scheduler) RequestAppointment(ctx context.Context, in RequestInput) (domain.Appointment, error) {
	appt, err := s.requestAppointment(ctx, in)
	if err != nil {
		countRejection("create", err)
		return domain.Appointment{}, err
	}
	metrics.AppointmentsBooked.Inc()
	return appt, nil
}

func (s *Scheduler) requestAppointment(ctx context.Context, in RequestInput) (domain.Appointment, error) {
	if in.ProviderID <= 0 {
		return domain.Appointment{}, validationError("provider_id", "provider_id must be a positive integer")
	}
	loc := s.formatter.Location()
	date, err := ParseDate(in.Date, loc)
	if err != nil {
		return domain.Appointment{}, err
	}

	requester, err := s.users.FindByID(ctx, in.RequesterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, forbiddenError(msgOnlyClients)
		}
		return domain.Appointment{}, fmt.Errorf("find requester: %w", err)
	}
	if requester.IsProvider {
		return domain.Appointment{}, forbiddenError(msgOnlyClients)
	}

	provider, err := s.users.FindByID(ctx, in.ProviderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, forbiddenError(msgNotProvider)
		}
		return domain.Appointment{}, fmt.Errorf("find provider: %w", err)
	}
	if !provider.IsProvider {
		return domain.Appointment{}, forbiddenError(msgNotProvider)
	}

	hourStart := domain.SlotStart(date, loc)
	if !hourStart.After(s.opts.now()) {
		return domain.Appointment{}, validationError("date", msgPastSlot)
	}

	_, err = s.repo.FindActiveByProviderAndDate(ctx, provider.ID, hourStart)
	switch {
	case err == nil:
		return domain.Appointment{}, conflictError(msgSlotUnavailable)
	case !errors.Is(err, store.ErrNotFound):
		return domain.Appointment{}, fmt.Errorf("check slot: %w", err)
	}

	appt, err := s.repo.Create(ctx, domain.Appointment{
		ClientID:   requester.ID,
		ProviderID: provider.ID,
		Date:       hourStart,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Appointment{}, conflictError(msgSlotUnavailable)
		}
		return domain.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}

	// Best effort: the booking stands even if the notice is lost.
	_ = s.sink.Create(ctx, domain.Notification{
		RecipientID: provider.ID,
		Content:     s.formatter.BookingNotice(requester.Name, hourStart),
	})

	s.opts.log.Debug("appointment requested",
		slog.Int64("appointment_id", appt.ID),
		slog.Int64("provider_id", appt.ProviderID),
		slog.Time("date", appt.Date),
	)
	return appt, nil
}

// Summary is one entry of a client's appointment listing.
type Summary struct {
	ID         int64        `json:"id"`
	Date       time.Time    `json:"date"`
	Past       bool         `json:"past"`
	Cancelable bool         `json:"cancelable"`
	Provider   *domain.User `json:"provider"`
}

func (s *Scheduler) ListAppointments(ctx context.Context, userID int64, page int) ([]Summary, error) {
	if page < 1 {
		return nil, validationError("page", "page must be at least 1")
	}

	rows, err := s.repo.ListActiveByClient(ctx, userID, page, s.opts.pageSize)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	now := s.opts.now()
	out := make([]Summary, 0, len(rows))
	for _, a := range rows {
		if a.Provider != nil && a.Provider.Avatar != nil {
			a.Provider.Avatar.ResolveURL(s.opts.filesBaseURL)
		}
		out = append(out, Summary{
			ID:         a.ID,
			Date:       a.Date,
			Past:       a.IsPast(now),
			Cancelable: a.IsCancelable(now),
			Provider:   publicProfile(a.Provider),
		})
	}
	return out, nil
}

func publicProfile(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	return &domain.User{ID: u.ID, Name: u.Name, IsProvider: u.IsProvider, Avatar: u.Avatar}
}

// ParseDate reads a booking date, taking zone-less values as wall-clock time
// in loc (UTC when nil). It returns a *ValidationError when raw is empty or
// matches none of the accepted layouts.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, validationError("date", "date is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, validationError("date", "date must be an ISO-8601 timestamp")
}

func countRejection(op string, err error) {
	var (
		vErr *ValidationError
		fErr *ForbiddenError
		cErr *ConflictError
		nErr *NotFoundError
	)
	switch {
	case errors.As(err, &vErr):
		metrics.Rejections.WithLabelValues(op, "validation").Inc()
	case errors.As(err, &fErr):
		metrics.Rejections.WithLabelValues(op, "forbidden").Inc()
	case errors.As(err, &cErr):
		metrics.Rejections.WithLabelValues(op, "conflict").Inc()
	case errors.As(err, &nErr):
		metrics.Rejections.WithLabelValues(op, "not_found").Inc()
	}
}
