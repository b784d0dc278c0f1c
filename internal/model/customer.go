package model

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var validate = validator.New()

// Customer is referenced by sales but owned independently of them.
type Customer struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name          string    `gorm:"type:varchar(100);not null"`
	Email         *string   `gorm:"type:varchar(254);uniqueIndex"`
	Phone         *string   `gorm:"type:varchar(20)"`
	Address       *string
	LoyaltyPoints int `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CustomerInput is the strict, already-parsed customer payload of a commit.
type CustomerInput struct {
	Name    string
	Email   *string
	Phone   *string
	Address *string
}

// Normalize trims fields, lower-cases the e-mail and validates the payload.
// Failures wrap ErrInvalidCustomer.
func (in CustomerInput) Normalize() (CustomerInput, error) {
	out := CustomerInput{Name: strings.TrimSpace(in.Name)}
	if out.Name == "" {
		return out, errors.Wrap(ErrInvalidCustomer, "name is required")
	}
	if len(out.Name) > 100 {
		return out, errors.Wrap(ErrInvalidCustomer, "name exceeds 100 characters")
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email != "" {
			if err := validate.Var(email, "email,max=254"); err != nil {
				return out, errors.Wrapf(ErrInvalidCustomer, "malformed email %q", *in.Email)
			}
			out.Email = &email
		}
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if len(phone) > 20 {
			return out, errors.Wrap(ErrInvalidCustomer, "phone exceeds 20 characters")
		}
		if phone != "" {
			out.Phone = &phone
		}
	}
	if in.Address != nil {
		addr := strings.TrimSpace(*in.Address)
		if addr != "" {
			out.Address = &addr
		}
	}
	return out, nil
}

// NewCustomer builds a customer from a normalized input.
func NewCustomer(in CustomerInput) *Customer {
	return &Customer{
		ID:      uuid.New(),
		Name:    in.Name,
		Email:   in.Email,
		Phone:   in.Phone,
		Address: in.Address,
	}
}
