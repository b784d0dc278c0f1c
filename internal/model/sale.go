package model

import (
	"time"

	"github.com/andrewhilario/grocery-pos-backend/internal/money"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PaymentMethod: "cash" | "credit" | "debit"
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCredit PaymentMethod = "credit"
	PaymentDebit  PaymentMethod = "debit"
)

// Valid reports whether m is one of the accepted methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCredit, PaymentDebit:
		return true
	}
	return false
}

// Label is the human readable name printed on receipts.
func (m PaymentMethod) Label() string {
	switch m {
	case PaymentCash:
		return "Cash"
	case PaymentCredit:
		return "Credit Card"
	case PaymentDebit:
		return "Debit Card"
	}
	return string(m)
}

// PaymentStatus: "paid" | "pending" | "cancelled"
type PaymentStatus string

const (
	PaymentPaid      PaymentStatus = "paid"
	PaymentPending   PaymentStatus = "pending"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Sale is the committed transaction record and the aggregate that computes
// its own totals. TotalAmount always equals Subtotal + TaxAmount - DiscountAmount
// and is derived from Items, never supplied by a caller.
type Sale struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	InvoiceNumber  string          `gorm:"type:varchar(50);uniqueIndex;not null"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	CustomerID     *uuid.UUID      `gorm:"type:uuid;index"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	PaymentMethod  PaymentMethod   `gorm:"type:varchar(20);not null"`
	PaymentStatus  PaymentStatus   `gorm:"type:varchar(20);not null;default:'paid'"`
	// SaleDate is written once on insert and never updated
	SaleDate  time.Time `gorm:"<-:create;not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Items    []SaleItem `gorm:"foreignKey:SaleID"`
	Receipt  *Receipt   `gorm:"foreignKey:SaleID"`
	Customer *Customer  `gorm:"foreignKey:CustomerID"`
	User     *User      `gorm:"foreignKey:UserID"`
}

// SaleItem snapshots the product's price, cost and tax rate at commit time so
// later catalog edits never alter historical sales.
type SaleItem struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SaleID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductName     string          `gorm:"type:varchar(200);not null"`
	SKU             string          `gorm:"column:sku;type:varchar(50);not null"`
	Quantity        int             `gorm:"not null;check:quantity > 0"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	// TotalPrice = UnitPrice * Quantity, pre-tax
	TotalPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt  time.Time
}

// NewSale starts a draft sale for the given principal. The discount is kept at
// money.Scale digits.
func NewSale(userID uuid.UUID, method PaymentMethod, discount decimal.Decimal) (*Sale, error) {
	if !method.Valid() {
		return nil, errors.Wrapf(ErrInvalidQuantity, "unknown payment method %q", method)
	}
	if discount.IsNegative() {
		return nil, errors.Wrapf(ErrInvalidQuantity, "discount_amount %s is negative", discount)
	}
	return &Sale{
		ID:             uuid.New(),
		UserID:         userID,
		PaymentMethod:  method,
		PaymentStatus:  PaymentPending,
		DiscountAmount: money.Round(discount),
	}, nil
}

// AddItem appends a line, snapshotting unit price, unit cost and tax rate
// from p at call time.
func (s *Sale) AddItem(p *Product, quantity int, discountPercent decimal.Decimal) error {
	if quantity <= 0 {
		return errors.Wrapf(ErrInvalidQuantity, "quantity %d for %s must be positive", quantity, p.SKU)
	}
	if !money.IsValidRate(discountPercent) {
		return errors.Wrapf(ErrInvalidQuantity, "discount_percent %s for %s out of range", discountPercent, p.SKU)
	}
	s.Items = append(s.Items, SaleItem{
		ID:              uuid.New(),
		SaleID:          s.ID,
		ProductID:       p.ID,
		ProductName:     p.Name,
		SKU:             p.SKU,
		Quantity:        quantity,
		UnitPrice:       p.Price,
		UnitCost:        p.Cost,
		TaxRate:         p.TaxRate,
		DiscountPercent: discountPercent,
		TotalPrice:      money.Mul(p.Price, quantity),
	})
	return nil
}

// CalculateTotals recomputes subtotal, tax and total from Items. Line taxes
// are summed at full precision and rounded once. Calling it repeatedly with
// unchanged items yields the same values.
func (s *Sale) CalculateTotals() error {
	subtotal := money.Zero
	tax := money.Zero
	for _, item := range s.Items {
		subtotal = subtotal.Add(item.TotalPrice)
		tax = tax.Add(money.PercentOf(item.TotalPrice, item.TaxRate))
	}
	subtotal = money.Round(subtotal)
	tax = money.Round(tax)
	gross := subtotal.Add(tax)
	if s.DiscountAmount.GreaterThan(gross) {
		return errors.Wrapf(ErrInvalidQuantity, "discount_amount %s exceeds sale amount %s",
			money.Format(s.DiscountAmount), money.Format(gross))
	}
	s.Subtotal = subtotal
	s.TaxAmount = tax
	s.TotalAmount = gross.Sub(s.DiscountAmount)
	return nil
}

// ItemCount is the total number of units across all lines.
func (s *Sale) ItemCount() int {
	n := 0
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}
