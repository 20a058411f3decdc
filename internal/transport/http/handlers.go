package http

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"bookings/backend/internal/service/appointments"
)

type createAppointmentBody struct {
	ProviderID int64  `json:"provider_id"`
	Date       string `json:"date"`
}

func (s *Server) listAppointments(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)

	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.RequestTimeout)
	defer cancel()

	list, err := s.svc.ListAppointments(ctx, userID(c), page)
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (s *Server) createAppointment(c *fiber.Ctx) error {
	var body createAppointmentBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "validation fails")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.RequestTimeout)
	defer cancel()

	appt, err := s.svc.RequestAppointment(ctx, appointments.RequestInput{
		RequesterID: userID(c),
		ProviderID:  body.ProviderID,
		Date:        body.Date,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(appt)
}

func (s *Server) cancelAppointment(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "appointment id must be a number")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.RequestTimeout)
	defer cancel()

	appt, err := s.svc.CancelAppointment(ctx, userID(c), id)
	if err != nil {
		return err
	}
	return c.JSON(appt)
}
