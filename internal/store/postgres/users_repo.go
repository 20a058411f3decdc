package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"bookings/backend/internal/domain"
)

type UserRepo struct {
	db *bun.DB
}

func NewUserRepo(db *bun.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) FindByID(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := r.db.NewSelect().
		Model(&u).
		Column("u.id", "u.name", "u.email", "u.provider", "u.avatar_id").
		Where("u.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.User{}, mapReadError(err)
	}
	return u, nil
}
