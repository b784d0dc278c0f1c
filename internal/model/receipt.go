package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/andrewhilario/grocery-pos-backend/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// WalkInCustomer is printed when a sale has no customer.
const WalkInCustomer = "Walk-in Customer"

// Receipt is created exactly once, atomically with its Sale. The content is
// stored as structured data and rendered to text when read.
type Receipt struct {
	ID            uuid.UUID                          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SaleID        uuid.UUID                          `gorm:"type:uuid;uniqueIndex;not null"`
	ReceiptNumber string                             `gorm:"type:varchar(60);uniqueIndex;not null"`
	Content       datatypes.JSONType[ReceiptContent] `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time
}

// ReceiptLine is one printed item line.
type ReceiptLine struct {
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Total           decimal.Decimal `json:"total"`
}

// ReceiptContent is the persisted, client-neutral receipt body.
type ReceiptContent struct {
	StoreName      string          `json:"store_name"`
	InvoiceNumber  string          `json:"invoice_number"`
	ReceiptNumber  string          `json:"receipt_number"`
	SaleDate       time.Time       `json:"sale_date"`
	Cashier        string          `json:"cashier"`
	Customer       string          `json:"customer"`
	Lines          []ReceiptLine   `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaymentMethod  string          `json:"payment_method"`
}

// ReceiptNumberFor derives the receipt number from an invoice number.
func ReceiptNumberFor(invoiceNumber string) string {
	return "RCPT-" + invoiceNumber
}

// NewReceipt builds the receipt for a sale whose totals are final. The same
// sale always yields the same content.
func NewReceipt(s *Sale, storeName, cashier string, customer *Customer) *Receipt {
	content := ReceiptContent{
		StoreName:      storeName,
		InvoiceNumber:  s.InvoiceNumber,
		ReceiptNumber:  ReceiptNumberFor(s.InvoiceNumber),
		SaleDate:       s.SaleDate.UTC(),
		Cashier:        cashier,
		Customer:       WalkInCustomer,
		Lines:          make([]ReceiptLine, 0, len(s.Items)),
		Subtotal:       s.Subtotal,
		TaxAmount:      s.TaxAmount,
		DiscountAmount: s.DiscountAmount,
		TotalAmount:    s.TotalAmount,
		PaymentMethod:  s.PaymentMethod.Label(),
	}
	if customer != nil {
		content.Customer = customer.Name
	}
	for _, item := range s.Items {
		content.Lines = append(content.Lines, ReceiptLine{
			SKU:             item.SKU,
			Name:            item.ProductName,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			TaxRate:         item.TaxRate,
			DiscountPercent: item.DiscountPercent,
			Total:           item.TotalPrice,
		})
	}
	return &Receipt{
		ID:            uuid.New(),
		SaleID:        s.ID,
		ReceiptNumber: content.ReceiptNumber,
		Content:       datatypes.NewJSONType(content),
	}
}

const receiptRule = "----------------------------------------"

// Render produces the plain-text receipt.
func (c ReceiptContent) Render() string {
	lines := make([]string, 0, len(c.Lines)+14)
	if c.StoreName != "" {
		lines = append(lines, c.StoreName)
	}
	lines = append(lines,
		fmt.Sprintf("Receipt for Invoice #%s", c.InvoiceNumber),
		fmt.Sprintf("Receipt No: %s", c.ReceiptNumber),
		fmt.Sprintf("Date: %s", c.SaleDate.Format("2006-01-02 15:04:05")),
		fmt.Sprintf("Cashier: %s", c.Cashier),
		fmt.Sprintf("Customer: %s", c.Customer),
		receiptRule,
	)
	for _, l := range c.Lines {
		lines = append(lines, fmt.Sprintf("%dx %s @ %s = %s", l.Quantity, l.Name, money.Format(l.UnitPrice), money.Format(l.Total)))
	}
	lines = append(lines,
		receiptRule,
		fmt.Sprintf("Subtotal: %s", money.Format(c.Subtotal)),
		fmt.Sprintf("Tax: %s", money.Format(c.TaxAmount)),
		fmt.Sprintf("Discount: %s", money.Format(c.DiscountAmount)),
		fmt.Sprintf("Total: %s", money.Format(c.TotalAmount)),
		fmt.Sprintf("Payment Method: %s", c.PaymentMethod),
		"Thank you for your business!",
	)
	return strings.Join(lines, "\n")
}
