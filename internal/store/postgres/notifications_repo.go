package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"bookings/backend/internal/domain"
)

type NotificationRepo struct {
	db *bun.DB
}

func NewNotificationRepo(db *bun.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) Create(ctx context.Context, n domain.Notification) error {
	m := n
	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	return err
}
