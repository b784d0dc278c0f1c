package dto

import "github.com/shopspring/decimal"

type RestockRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type ReserveRequest struct {
	Quantity int    `json:"quantity" validate:"required,min=1"`
	Reason   string `json:"reason"   validate:"omitempty,max=255"`
}

// InventoryFilter is bound from the query string of GET /v1/inventory.
type InventoryFilter struct {
	LowStockOnly bool `form:"low_stock"`
	Page         int  `form:"page,default=1"   validate:"min=1"`
	Limit        int  `form:"limit,default=50" validate:"min=1,max=200"`
}

type InventoryRecordResponse struct {
	ProductID       string          `json:"product_id"`
	SKU             string          `json:"sku"`
	ProductName     string          `json:"product_name"`
	Price           decimal.Decimal `json:"price"`
	Quantity        int             `json:"quantity"`
	ReorderLevel    int             `json:"reorder_level"`
	NeedsRestock    bool            `json:"needs_restock"`
	LastRestockDate *string         `json:"last_restock_date"`
	Version         int             `json:"version"`
}

type InventoryListResponse struct {
	Data  []InventoryRecordResponse `json:"data"`
	Total int64                     `json:"total"`
	Page  int                       `json:"page"`
	Limit int                       `json:"limit"`
}

type LowStockResponse struct {
	Data  []InventoryRecordResponse `json:"data"`
	Count int                       `json:"count"`
}

type InventorySummaryResponse struct {
	TotalProducts  int64           `json:"total_products"`
	LowStockCount  int64           `json:"low_stock_count"`
	TotalValuation decimal.Decimal `json:"total_valuation"`
}

// MovementFilter is bound from the query string of GET /v1/inventory/:product_id/movements.
type MovementFilter struct {
	Type  string `form:"type"              validate:"omitempty,oneof=sale restock adjustment"`
	Page  int    `form:"page,default=1"    validate:"min=1"`
	Limit int    `form:"limit,default=50"  validate:"min=1,max=200"`
}

type StockMovementResponse struct {
	ID             string  `json:"id"`
	ProductID      string  `json:"product_id"`
	Type           string  `json:"type"`
	Quantity       int     `json:"quantity"`
	QuantityBefore int     `json:"quantity_before"`
	QuantityAfter  int     `json:"quantity_after"`
	Reason         string  `json:"reason"`
	ReferenceID    *string `json:"reference_id"`
	CreatedAt      string  `json:"created_at"`
}

type StockMovementListResponse struct {
	Data  []StockMovementResponse `json:"data"`
	Total int64                   `json:"total"`
	Page  int                     `json:"page"`
	Limit int                     `json:"limit"`
}
