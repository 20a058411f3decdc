package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AppointmentsBooked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_appointments_booked_total",
			Help: "Appointments created.",
		},
	)

	AppointmentsCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_appointments_cancelled_total",
			Help: "Appointments cancelled by their clients.",
		},
	)

	// Rejections counts requests refused by a lifecycle rule, labelled by
	// operation and the error kind returned to the caller.
	Rejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_appointment_rejections_total",
			Help: "Booking and cancellation requests rejected by validation, authorization or conflict checks.",
		},
		[]string{"op", "reason"},
	)

	SideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_side_effect_failures_total",
			Help: "Best-effort side effects that failed after a committed write.",
		},
		[]string{"effect"},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_jobs_processed_total",
			Help: "Queue jobs handled by the worker.",
		},
		[]string{"kind", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookings_job_duration_seconds",
			Help:    "Time spent handling a queue job.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)
