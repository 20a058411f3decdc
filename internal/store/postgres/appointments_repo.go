package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"bookings/backend/internal/domain"
	"bookings/backend/internal/store"
)

const (
	uniqueViolation      = "23505"
	activeSlotConstraint = "appointments_provider_slot_active"
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

// Create inserts the appointment while holding the provider's calendar lock.
// The partial unique index on (provider_id, date) backs the in-transaction
// check, so a concurrent writer that slips past the lock still gets
// store.ErrConflict.
func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := domain.Appointment{
		ClientID:   appt.ClientID,
		ProviderID: appt.ProviderID,
		Date:       appt.Date.UTC(),
		CanceledAt: appt.CanceledAt,
	}

	err := r.InProviderTransaction(ctx, appt.ProviderID, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*domain.Appointment)(nil)).
			Where("a.provider_id = ?", m.ProviderID).
			Where("a.date = ?", m.Date).
			Where("a.canceled_at IS NULL").
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return store.ErrConflict
		}

		_, err = tx.NewInsert().Model(&m).Returning("*").Exec(ctx)
		return mapWriteError(err)
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return m, nil
}

func (r *AppointmentRepo) FindByID(ctx context.Context, id int64, withJoins bool) (domain.Appointment, error) {
	var appt domain.Appointment
	q := r.db.NewSelect().
		Model(&appt).
		Where("a.id = ?", id)
	if withJoins {
		q = q.
			Relation("Provider", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Column("id", "name", "email", "provider")
			}).
			Relation("Client", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Column("id", "name", "email", "provider")
			})
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		return domain.Appointment{}, mapReadError(err)
	}
	return appt, nil
}

func (r *AppointmentRepo) FindActiveByProviderAndDate(ctx context.Context, providerID int64, date time.Time) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("a.provider_id = ?", providerID).
		Where("a.date = ?", date.UTC()).
		Where("a.canceled_at IS NULL").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, mapReadError(err)
	}
	return appt, nil
}

// Update persists the cancellation state of an active appointment. Cancelled
// rows are immutable: updating one returns store.ErrConflict.
func (r *AppointmentRepo) Update(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	res, err := r.db.NewUpdate().
		Model(&m).
		Column("canceled_at", "updated_at").
		WherePK().
		Where("a.canceled_at IS NULL").
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		exists, err := r.db.NewSelect().
			Model((*domain.Appointment)(nil)).
			Where("a.id = ?", appt.ID).
			Exists(ctx)
		if err != nil {
			return domain.Appointment{}, err
		}
		if !exists {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, store.ErrConflict
	}
	return m, nil
}

func (r *AppointmentRepo) ListActiveByClient(ctx context.Context, clientID int64, page, pageSize int) ([]domain.Appointment, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = store.DefaultPageSize
	}

	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Provider", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column("id", "name", "avatar_id")
		}).
		Relation("Provider.Avatar", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Column("id", "path")
		}).
		Where("a.user_id = ?", clientID).
		Where("a.canceled_at IS NULL").
		OrderExpr("a.date ASC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// InProviderTransaction runs fn in a transaction that serializes writers to
// one provider's calendar.
func (r *AppointmentRepo) InProviderTransaction(ctx context.Context, providerID int64, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderCalendar(ctx, tx, providerID); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
}

func lockProviderCalendar(ctx context.Context, tx bun.Tx, providerID int64) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(?)", providerID).Exec(ctx)
	return err
}

func mapReadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeSlotConstraint {
		return store.ErrConflict
	}
	return err
}
