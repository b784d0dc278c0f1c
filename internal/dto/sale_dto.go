package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// CustomerRequest is the optional customer block of a commit. Unknown fields
// are rejected by the handler.
type CustomerRequest struct {
	Name    string  `json:"name"    validate:"required,max=100"`
	Email   *string `json:"email"   validate:"omitempty,email,max=254"`
	Phone   *string `json:"phone"   validate:"omitempty,max=20"`
	Address *string `json:"address"`
}

type SaleItemRequest struct {
	ProductID       string          `json:"product_id"       validate:"required,uuid"`
	Quantity        int             `json:"quantity"         validate:"required,min=1"`
	DiscountPercent decimal.Decimal `json:"discount_percent" validate:"min=0,max=100"`
}

type CommitSaleRequest struct {
	Customer       *CustomerRequest  `json:"customer"        validate:"omitempty"`
	Items          []SaleItemRequest `json:"items"           validate:"required,min=1,dive"`
	PaymentMethod  string            `json:"payment_method"  validate:"required,oneof=cash credit debit"`
	DiscountAmount decimal.Decimal   `json:"discount_amount" validate:"min=0"`
}

// EmailReceiptRequest overrides the customer's address when set.
type EmailReceiptRequest struct {
	Email *string `json:"email" validate:"omitempty,email"`
}

// ─── Filter / List ──────────────────────────────────────────────────────────

// SaleFilter is bound from the query string of GET /v1/sales.
type SaleFilter struct {
	Date          string  `form:"date"           validate:"omitempty,datetime=2006-01-02"`
	PaymentMethod string  `form:"payment_method" validate:"omitempty,oneof=cash credit debit"`
	CustomerID    *string `form:"customer_id"    validate:"omitempty,uuid"`
	Page          int     `form:"page,default=1"   validate:"min=1"`
	Limit         int     `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SaleItemResponse struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"product_id"`
	SKU             string          `json:"sku"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}

type SaleResponse struct {
	ID             string             `json:"id"`
	InvoiceNumber  string             `json:"invoice_number"`
	ReceiptNumber  string             `json:"receipt_number,omitempty"`
	UserID         string             `json:"user_id"`
	CustomerID     *string            `json:"customer_id"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	TaxAmount      decimal.Decimal    `json:"tax_amount"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	TotalAmount    decimal.Decimal    `json:"total_amount"`
	PaymentMethod  string             `json:"payment_method"`
	PaymentStatus  string             `json:"payment_status"`
	SaleDate       string             `json:"sale_date"`
	Items          []SaleItemResponse `json:"items"`
}

type SaleListResponse struct {
	Data  []SaleResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

type ReceiptLineResponse struct {
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Total           decimal.Decimal `json:"total"`
}

type ReceiptResponse struct {
	ReceiptNumber  string                `json:"receipt_number"`
	InvoiceNumber  string                `json:"invoice_number"`
	StoreName      string                `json:"store_name"`
	SaleDate       string                `json:"sale_date"`
	Cashier        string                `json:"cashier"`
	Customer       string                `json:"customer"`
	Lines          []ReceiptLineResponse `json:"lines"`
	Subtotal       decimal.Decimal       `json:"subtotal"`
	TaxAmount      decimal.Decimal       `json:"tax_amount"`
	DiscountAmount decimal.Decimal       `json:"discount_amount"`
	TotalAmount    decimal.Decimal       `json:"total_amount"`
	PaymentMethod  string                `json:"payment_method"`
	Text           string                `json:"text"`
}

type EmailReceiptResponse struct {
	Queued bool   `json:"queued"`
	To     string `json:"to"`
}
