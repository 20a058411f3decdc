package notify

import (
	"context"
	"log/slog"

	"bookings/backend/internal/domain"
	"bookings/backend/internal/metrics"
	"bookings/backend/internal/store"
)

// LoggingSink records failed notification writes before handing the error
// back to the caller.
type LoggingSink struct {
	next store.NotificationSink
	log  *slog.Logger
}

func NewLoggingSink(next store.NotificationSink, log *slog.Logger) *LoggingSink {
	if log == nil {
		log = slog.Default()
	}
	return &LoggingSink{next: next, log: log.With(slog.String("component", "notify.sink"))}
}

func (s *LoggingSink) Create(ctx context.Context, n domain.Notification) error {
	if err := s.next.Create(ctx, n); err != nil {
		metrics.SideEffectFailures.WithLabelValues("notification").Inc()
		s.log.Warn("notification create failed", slog.Any("err", err), slog.Int64("recipient_id", n.RecipientID))
		return err
	}
	return nil
}
