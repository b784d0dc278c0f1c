package model

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Error taxonomy shared by repositories, services and handlers.
// Callers classify with errors.Is / errors.As; context is added with errors.Wrapf.
var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrInvalidCustomer         = errors.New("invalid customer")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInvoiceGenerationFailed = errors.New("invoice number generation failed")
	ErrPersistence             = errors.New("persistence failure")

	// ErrDuplicateInvoice signals a uniqueness collision on invoice_number.
	// It never leaves the commit workflow.
	ErrDuplicateInvoice = errors.New("duplicate invoice number")
)

// InsufficientStockError reports a reservation that exceeds on-hand stock.
type InsufficientStockError struct {
	ProductID uuid.UUID
	SKU       string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.SKU, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// PersistenceError wraps an underlying store failure. It is the only error
// class a caller may treat as transient.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Persistence wraps err as a PersistenceError unless it is nil or already
// classified by the taxonomy above.
func Persistence(op string, err error) error {
	if err == nil || IsClassified(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsClassified reports whether err already belongs to the domain taxonomy.
func IsClassified(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrInvalidQuantity, ErrInvalidCustomer, ErrInsufficientStock,
		ErrInvoiceGenerationFailed, ErrPersistence, ErrDuplicateInvoice,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
