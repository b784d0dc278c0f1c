package model

import (
	"time"

	"github.com/andrewhilario/grocery-pos-backend/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryRecord is the ledger row for exactly one product.
// Quantity is never persisted negative and is only mutated by the ledger's
// reserve/restock operations. Version increments on every mutation.
type InventoryRecord struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID       uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null"`
	Quantity        int        `gorm:"not null;default:0;check:quantity >= 0"`
	ReorderLevel    int        `gorm:"not null;default:10;check:reorder_level >= 0"`
	LastRestockDate *time.Time `gorm:"type:date"`
	Version         int        `gorm:"not null;default:1"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Product *Product `gorm:"foreignKey:ProductID"`
}

// NeedsRestock reports quantity <= reorder_level.
func (r InventoryRecord) NeedsRestock() bool {
	return r.Quantity <= r.ReorderLevel
}

// LowStock keeps the records that need restocking, preserving order.
func LowStock(records []InventoryRecord) []InventoryRecord {
	out := make([]InventoryRecord, 0, len(records))
	for _, r := range records {
		if r.NeedsRestock() {
			out = append(out, r)
		}
	}
	return out
}

// Valuation sums quantity * product price over records. Records without a
// loaded Product contribute nothing.
func Valuation(records []InventoryRecord) decimal.Decimal {
	total := money.Zero
	for _, r := range records {
		if r.Product == nil {
			continue
		}
		total = total.Add(money.Mul(r.Product.Price, r.Quantity))
	}
	return total
}
