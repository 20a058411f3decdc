package grpc

import (
	"time"

	"bookings/backend/internal/domain"
	"bookings/backend/internal/service/appointments"
)

type ListAppointmentsRequest struct {
	Page int `json:"page"`
}

type ListAppointmentsResponse struct {
	Appointments []appointments.Summary `json:"appointments"`
}

type CreateAppointmentRequest struct {
	ProviderID int64  `json:"provider_id"`
	Date       string `json:"date"`
}

type CreateAppointmentResponse struct {
	Appointment Appointment `json:"appointment"`
}

type CancelAppointmentRequest struct {
	AppointmentID int64 `json:"appointment_id"`
}

type CancelAppointmentResponse struct {
	Appointment Appointment `json:"appointment"`
}

type Appointment struct {
	ID         int64      `json:"id"`
	ClientID   int64      `json:"user_id"`
	ProviderID int64      `json:"provider_id"`
	Date       time.Time  `json:"date"`
	CanceledAt *time.Time `json:"canceled_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func toAppointment(a domain.Appointment) Appointment {
	return Appointment{
		ID:         a.ID,
		ClientID:   a.ClientID,
		ProviderID: a.ProviderID,
		Date:       a.Date,
		CanceledAt: a.CanceledAt,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}
