package domain

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// CancellationWindow is how long before its start an appointment stops being
// cancelable.
const CancellationWindow = 2 * time.Hour

type Appointment struct {
	bun.BaseModel `bun:"table:appointments,alias:a"`

	ID         int64      `bun:"id,pk,autoincrement" json:"id"`
	ClientID   int64      `bun:"user_id,notnull" json:"user_id"`
	ProviderID int64      `bun:"provider_id,notnull" json:"provider_id"`
	Date       time.Time  `bun:"date,notnull" json:"date"`
	CanceledAt *time.Time `bun:"canceled_at" json:"canceled_at"`
	CreatedAt  time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull" json:"updated_at"`

	Provider *User `bun:"rel:belongs-to,join:provider_id=id" json:"provider,omitempty"`
	Client   *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func (a Appointment) IsActive() bool {
	return a.CanceledAt == nil
}

func (a Appointment) IsPast(now time.Time) bool {
	return a.Date.Before(now)
}

// IsCancelable reports whether more than CancellationWindow remains before the
// appointment and it has not been cancelled yet.
func (a Appointment) IsCancelable(now time.Time) bool {
	return a.IsActive() && a.Date.Add(-CancellationWindow).After(now)
}

// SlotStart truncates t to the start of its enclosing wall-clock hour in loc
// and returns it in UTC. A nil loc means UTC.
func SlotStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	intoHour := time.Duration(lt.Minute())*time.Minute +
		time.Duration(lt.Second())*time.Second +
		time.Duration(lt.Nanosecond())
	return lt.Add(-intoHour).UTC()
}
