package repository

import (
	"context"

	"github.com/andrewhilario/grocery-pos-backend/internal/dto"
	"github.com/andrewhilario/grocery-pos-backend/internal/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Constraint names created by the migrations. IsUniqueViolation matches on them
// to tell an invoice collision apart from any other unique failure.
const (
	constraintInvoiceNumber = "sales_invoice_number_key"
	constraintReceiptNumber = "receipts_receipt_number_key"
)

type SaleRepository interface {
	// CreateTx inserts the sale, its items and its receipt inside a savepoint.
	// An invoice or receipt number collision returns model.ErrDuplicateInvoice
	// with tx still usable for a retry.
	CreateTx(ctx context.Context, tx *gorm.DB, s *model.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	FindReceiptBySaleID(ctx context.Context, saleID uuid.UUID) (*model.Receipt, error)
	List(ctx context.Context, filter dto.SaleFilter) ([]model.Sale, int64, error)
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) CreateTx(ctx context.Context, tx *gorm.DB, s *model.Sale) error {
	err := savepoint(ctx, tx, func(sp *gorm.DB) error {
		// Associations are inserted explicitly: GORM's implicit association
		// save uses ON CONFLICT DO NOTHING, which would hide a receipt collision.
		if err := sp.Omit(clause.Associations).Create(s).Error; err != nil {
			return err
		}
		if len(s.Items) > 0 {
			if err := sp.Create(&s.Items).Error; err != nil {
				return err
			}
		}
		if s.Receipt != nil {
			return sp.Create(s.Receipt).Error
		}
		return nil
	})
	if IsUniqueViolation(err, constraintInvoiceNumber, constraintReceiptNumber) {
		return errors.Wrapf(model.ErrDuplicateInvoice, "invoice %s", s.InvoiceNumber)
	}
	return model.Persistence("create sale", err)
}

func (r *saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Receipt").
		Preload("Customer").
		Preload("User").
		First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(model.ErrNotFound, "sale %s", id)
	}
	if err != nil {
		return nil, model.Persistence("find sale", err)
	}
	return &s, nil
}

func (r *saleRepo) FindReceiptBySaleID(ctx context.Context, saleID uuid.UUID) (*model.Receipt, error) {
	var rc model.Receipt
	err := r.db.WithContext(ctx).Where("sale_id = ?", saleID).First(&rc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(model.ErrNotFound, "receipt for sale %s", saleID)
	}
	if err != nil {
		return nil, model.Persistence("find receipt", err)
	}
	return &rc, nil
}

func (r *saleRepo) List(ctx context.Context, filter dto.SaleFilter) ([]model.Sale, int64, error) {
	var sales []model.Sale
	var total int64
	offset := (filter.Page - 1) * filter.Limit

	q := r.db.WithContext(ctx).Model(&model.Sale{})
	if filter.Date != "" {
		q = q.Where("DATE(sale_date) = ?", filter.Date)
	}
	if filter.PaymentMethod != "" {
		q = q.Where("payment_method = ?", filter.PaymentMethod)
	}
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, model.Persistence("count sales", err)
	}

	err := q.Preload("Items").
		Order("sale_date DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&sales).Error
	if err != nil {
		return nil, 0, model.Persistence("list sales", err)
	}
	return sales, total, nil
}
