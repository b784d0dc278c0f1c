package repository

import (
	"context"
	"time"

	"github.com/andrewhilario/grocery-pos-backend/internal/dto"
	"github.com/andrewhilario/grocery-pos-backend/internal/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryRepository is the storage side of the inventory ledger.
// The *Tx methods lock the product's row (SELECT ... FOR UPDATE) for the rest
// of the caller's transaction; callers must pass the live tx.
type InventoryRepository interface {
	// ReserveTx decrements quantity when on-hand >= qty and returns the updated
	// record. Otherwise it returns *model.InsufficientStockError and leaves the
	// row untouched.
	ReserveTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*model.InventoryRecord, error)
	// RestockTx increments quantity and stamps last_restock_date.
	RestockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, when time.Time) (*model.InventoryRecord, error)

	FindByProductID(ctx context.Context, productID uuid.UUID) (*model.InventoryRecord, error)
	List(ctx context.Context, filter dto.InventoryFilter) ([]model.InventoryRecord, int64, error)
	ListLowStock(ctx context.Context) ([]model.InventoryRecord, error)

	// Aggregates, each computed by a single query over active products.
	CountProducts(ctx context.Context) (int64, error)
	CountLowStock(ctx context.Context) (int64, error)
	TotalValuation(ctx context.Context) (decimal.Decimal, error)
}

type inventoryRepo struct{ db *gorm.DB }

func NewInventoryRepository(db *gorm.DB) InventoryRepository { return &inventoryRepo{db: db} }

func (r *inventoryRepo) lockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*model.InventoryRecord, error) {
	var rec model.InventoryRecord
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(model.ErrNotFound, "inventory record for product %s", productID)
	}
	if err != nil {
		return nil, model.Persistence("lock inventory record", err)
	}
	return &rec, nil
}

func (r *inventoryRepo) ReserveTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (*model.InventoryRecord, error) {
	rec, err := r.lockTx(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if rec.Quantity < qty {
		return nil, &model.InsufficientStockError{ProductID: productID, Available: rec.Quantity, Requested: qty}
	}

	res := tx.WithContext(ctx).Model(&model.InventoryRecord{}).
		Where("id = ? AND quantity >= ?", rec.ID, qty).
		Updates(map[string]interface{}{
			"quantity": gorm.Expr("quantity - ?", qty),
			"version":  gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, model.Persistence("decrement inventory", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &model.InsufficientStockError{ProductID: productID, Available: rec.Quantity, Requested: qty}
	}

	rec.Quantity -= qty
	rec.Version++
	return rec, nil
}

func (r *inventoryRepo) RestockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, when time.Time) (*model.InventoryRecord, error) {
	rec, err := r.lockTx(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	day := time.Date(when.Year(), when.Month(), when.Day(), 0, 0, 0, 0, time.UTC)
	err = tx.WithContext(ctx).Model(&model.InventoryRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"quantity":          gorm.Expr("quantity + ?", qty),
			"version":           gorm.Expr("version + 1"),
			"last_restock_date": day,
		}).Error
	if err != nil {
		return nil, model.Persistence("increment inventory", err)
	}

	rec.Quantity += qty
	rec.Version++
	rec.LastRestockDate = &day
	return rec, nil
}

func (r *inventoryRepo) FindByProductID(ctx context.Context, productID uuid.UUID) (*model.InventoryRecord, error) {
	var rec model.InventoryRecord
	err := r.db.WithContext(ctx).Preload("Product").Where("product_id = ?", productID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(model.ErrNotFound, "inventory record for product %s", productID)
	}
	if err != nil {
		return nil, model.Persistence("find inventory record", err)
	}
	return &rec, nil
}

// activeRecords scopes a query to records whose product is active.
func (r *inventoryRepo) activeRecords(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.InventoryRecord{}).
		Joins("JOIN products ON products.id = inventory_records.product_id AND products.is_active = true")
}

func (r *inventoryRepo) List(ctx context.Context, filter dto.InventoryFilter) ([]model.InventoryRecord, int64, error) {
	var records []model.InventoryRecord
	var total int64

	q := r.activeRecords(ctx)
	if filter.LowStockOnly {
		q = q.Where("inventory_records.quantity <= inventory_records.reorder_level")
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, model.Persistence("count inventory", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	err := q.Preload("Product").
		Order("products.name ASC").
		Offset(offset).Limit(filter.Limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, model.Persistence("list inventory", err)
	}
	return records, total, nil
}

func (r *inventoryRepo) ListLowStock(ctx context.Context) ([]model.InventoryRecord, error) {
	var records []model.InventoryRecord
	err := r.activeRecords(ctx).
		Where("inventory_records.quantity <= inventory_records.reorder_level").
		Preload("Product").
		Order("inventory_records.quantity ASC, products.name ASC").
		Find(&records).Error
	return records, model.Persistence("list low stock", err)
}

func (r *inventoryRepo) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := r.activeRecords(ctx).Count(&n).Error
	return n, model.Persistence("count products", err)
}

func (r *inventoryRepo) CountLowStock(ctx context.Context) (int64, error) {
	var n int64
	err := r.activeRecords(ctx).
		Where("inventory_records.quantity <= inventory_records.reorder_level").
		Count(&n).Error
	return n, model.Persistence("count low stock", err)
}

func (r *inventoryRepo) TotalValuation(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.activeRecords(ctx).
		Select("COALESCE(SUM(inventory_records.quantity * products.price), 0)").
		Row().Scan(&total)
	if err != nil {
		return decimal.Zero, model.Persistence("sum inventory valuation", err)
	}
	return total, nil
}
