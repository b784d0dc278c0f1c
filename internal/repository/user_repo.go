package repository

import (
	"context"

	"github.com/andrewhilario/grocery-pos-backend/internal/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type userRepo struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepo{db: db} }

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	// Accept login by username OR email (case-insensitive email match)
	err := r.db.WithContext(ctx).
		Where("(username = ? OR LOWER(email) = LOWER(?)) AND active = true", username, username).
		First(&u).Error
	return r.found(&u, err, "user "+username)
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	return r.found(&u, err, "user "+id.String())
}

func (r *userRepo) found(u *model.User, err error, what string) (*model.User, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(model.ErrNotFound, what)
	}
	if err != nil {
		return nil, model.Persistence("find user", err)
	}
	return u, nil
}
