package repository

import (
	"context"

	"github.com/andrewhilario/grocery-pos-backend/internal/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type CustomerRepository interface {
	// FindByEmailTx looks the customer up inside the caller's transaction.
	FindByEmailTx(ctx context.Context, tx *gorm.DB, email string) (*model.Customer, error)
	// CreateTx inserts inside a savepoint. A concurrent insert of the same
	// e-mail yields ErrConflict and leaves tx usable.
	CreateTx(ctx context.Context, tx *gorm.DB, c *model.Customer) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error)
}

type customerRepo struct{ db *gorm.DB }

func NewCustomerRepository(db *gorm.DB) CustomerRepository { return &customerRepo{db: db} }

func (r *customerRepo) FindByEmailTx(ctx context.Context, tx *gorm.DB, email string) (*model.Customer, error) {
	var c model.Customer
	err := tx.WithContext(ctx).Where("email = ?", email).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(model.ErrNotFound, "customer %s", email)
	}
	if err != nil {
		return nil, model.Persistence("find customer", err)
	}
	return &c, nil
}

func (r *customerRepo) CreateTx(ctx context.Context, tx *gorm.DB, c *model.Customer) error {
	err := savepoint(ctx, tx, func(sp *gorm.DB) error {
		return sp.Create(c).Error
	})
	if IsUniqueViolation(err, "email") {
		return errors.Wrapf(ErrConflict, "customer email %s", *c.Email)
	}
	return model.Persistence("create customer", err)
}

func (r *customerRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var c model.Customer
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(model.ErrNotFound, "customer %s", id)
	}
	if err != nil {
		return nil, model.Persistence("find customer", err)
	}
	return &c, nil
}
