package service

import (
	"context"
	"time"

	"github.com/andrewhilario/grocery-pos-backend/internal/dto"
	"github.com/andrewhilario/grocery-pos-backend/internal/model"
	"github.com/andrewhilario/grocery-pos-backend/internal/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type CustomerService interface {
	// ResolveTx returns the customer matching in's e-mail or creates one, inside
	// the caller's transaction. A nil input resolves to no customer.
	ResolveTx(ctx context.Context, tx *gorm.DB, in *model.CustomerInput) (*model.Customer, error)
	// Create resolves a standalone customer. created is false when an existing
	// customer was matched by e-mail.
	Create(ctx context.Context, req dto.CustomerRequest) (resp *dto.CustomerResponse, created bool, err error)
}

type customerService struct {
	repo repository.CustomerRepository
	tx   repository.TxRunner
}

func NewCustomerService(repo repository.CustomerRepository, tx repository.TxRunner) CustomerService {
	return &customerService{repo: repo, tx: tx}
}

func (s *customerService) ResolveTx(ctx context.Context, tx *gorm.DB, in *model.CustomerInput) (*model.Customer, error) {
	c, _, err := s.resolveTx(ctx, tx, in)
	return c, err
}

func (s *customerService) resolveTx(ctx context.Context, tx *gorm.DB, in *model.CustomerInput) (*model.Customer, bool, error) {
	if in == nil {
		return nil, false, nil
	}
	norm, err := in.Normalize()
	if err != nil {
		return nil, false, err
	}

	if norm.Email != nil {
		existing, err := s.repo.FindByEmailTx(ctx, tx, *norm.Email)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, false, err
		}
	}

	c := model.NewCustomer(norm)
	err = s.repo.CreateTx(ctx, tx, c)
	if errors.Is(err, repository.ErrConflict) {
		// Lost a race with a concurrent commit for the same e-mail.
		existing, ferr := s.repo.FindByEmailTx(ctx, tx, *norm.Email)
		return existing, false, ferr
	}
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (s *customerService) Create(ctx context.Context, req dto.CustomerRequest) (*dto.CustomerResponse, bool, error) {
	in := customerInput(&req)
	var c *model.Customer
	var created bool
	err := s.tx.RunTx(ctx, func(tx *gorm.DB) error {
		var err error
		c, created, err = s.resolveTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return customerToResponse(c), created, nil
}

// customerInput converts the optional request block; nil stays nil.
func customerInput(req *dto.CustomerRequest) *model.CustomerInput {
	if req == nil {
		return nil
	}
	return &model.CustomerInput{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	}
}

func customerToResponse(c *model.Customer) *dto.CustomerResponse {
	return &dto.CustomerResponse{
		ID:            c.ID.String(),
		Name:          c.Name,
		Email:         c.Email,
		Phone:         c.Phone,
		Address:       c.Address,
		LoyaltyPoints: c.LoyaltyPoints,
		CreatedAt:     c.CreatedAt.UTC().Format(time.RFC3339),
	}
}
