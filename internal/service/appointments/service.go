package appointments

import (
	"log/slog"
	"time"
)

// Clock returns the current instant. Tests replace it to pin "now".
type Clock func() time.Time

type options struct {
	now          Clock
	log          *slog.Logger
	filesBaseURL string
	pageSize     int
}

type Option func(*options)

func WithClock(now Clock) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithFilesBaseURL sets the public URL prefix used to resolve avatar URLs.
func WithFilesBaseURL(url string) Option {
	return func(o *options) { o.filesBaseURL = url }
}

func WithPageSize(n int) Option {
	return func(o *options) { o.pageSize = n }
}

func buildOptions(opts []Option) options {
	o := options{
		now:      time.Now,
		log:      slog.Default(),
		pageSize: 20,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pageSize <= 0 {
		o.pageSize = 20
	}
	return o
}

// Service exposes the scheduler and canceller operations behind one value for
// the transports.
type Service struct {
	*Scheduler
	*Canceller
}

func NewService(s *Scheduler, c *Canceller) *Service {
	return &Service{Scheduler: s, Canceller: c}
}
