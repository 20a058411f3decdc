package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bookings/backend/internal/domain"
	"bookings/backend/internal/notify"
	"bookings/backend/internal/queue"
)

// CancellationMailKind identifies the job enqueued after a cancellation.
const CancellationMailKind = "CancellationMail"

type CancellationMailPayload struct {
	Appointment domain.Appointment `json:"appointment"`
}

type Message struct {
	To      string
	Name    string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	if log == nil {
		log = slog.Default()
	}
	return &LogMailer{log: log.With(slog.String("component", "mailer"))}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.log.InfoContext(ctx, "mail sent",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}

// CancellationMail tells the provider that a client cancelled their booking.
type CancellationMail struct {
	mailer    Mailer
	formatter *notify.Formatter
}

func NewCancellationMail(mailer Mailer, formatter *notify.Formatter) *CancellationMail {
	return &CancellationMail{mailer: mailer, formatter: formatter}
}

func (c *CancellationMail) Handle(ctx context.Context, job queue.Job) error {
	var p CancellationMailPayload
	if err := job.Decode(&p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	msg, err := c.Message(p.Appointment)
	if err != nil {
		return err
	}
	return c.mailer.Send(ctx, msg)
}

func (c *CancellationMail) Message(appt domain.Appointment) (Message, error) {
	if appt.Provider == nil || appt.Provider.Email == "" {
		return Message{}, errors.New("appointment has no provider email")
	}
	clientName := ""
	if appt.Client != nil {
		clientName = appt.Client.Name
	}
	return Message{
		To:      appt.Provider.Email,
		Name:    appt.Provider.Name,
		Subject: c.formatter.CancellationSubject(),
		Body:    c.formatter.CancellationBody(appt.Provider.Name, clientName, appt.Date),
	}, nil
}
