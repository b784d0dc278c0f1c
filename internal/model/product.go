package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is owned by the catalog. Sale logic only reads it and snapshots
// price, cost and tax rate into SaleItems at commit time.
type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SKU         string          `gorm:"column:sku;type:varchar(50);uniqueIndex;not null"`
	Barcode     *string         `gorm:"type:varchar(50);uniqueIndex"`
	Name        string          `gorm:"type:varchar(200);index;not null"`
	Description string          `gorm:"not null;default:''"`
	Category    string          `gorm:"type:varchar(100);not null;default:''"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Cost        decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	// TaxRate is a percentage in [0, 100]
	TaxRate   decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	IsActive  bool            `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Inventory *InventoryRecord `gorm:"foreignKey:ProductID"`
}
