package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andrewhilario/grocery-pos-backend/internal/dto"
	"github.com/andrewhilario/grocery-pos-backend/internal/model"
	"github.com/andrewhilario/grocery-pos-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const summaryCacheKey = "inventory:summary"

// LedgerService owns every mutation of on-hand stock and the read-only
// aggregates computed over it.
type LedgerService interface {
	// Reserve is a standalone stock-out in its own transaction.
	Reserve(ctx context.Context, productID uuid.UUID, qty int, reason string) (*dto.InventoryRecordResponse, error)
	// ReserveTx joins the caller's transaction. Row locks are held until that
	// transaction ends.
	ReserveTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, saleID *uuid.UUID, reason string) (*model.InventoryRecord, error)
	Restock(ctx context.Context, productID uuid.UUID, qty int, when time.Time) (*dto.InventoryRecordResponse, error)

	ListInventory(ctx context.Context, filter dto.InventoryFilter) (*dto.InventoryListResponse, error)
	ListMovements(ctx context.Context, productID uuid.UUID, filter dto.MovementFilter) (*dto.StockMovementListResponse, error)
	LowStockReport(ctx context.Context) (*dto.LowStockResponse, error)
	InventorySummary(ctx context.Context) (*dto.InventorySummaryResponse, error)
	// InvalidateSummary drops the cached summary after a ledger mutation.
	InvalidateSummary(ctx context.Context)
}

type ledgerService struct {
	inventory repository.InventoryRepository
	movements repository.StockMovementRepository
	products  repository.ProductRepository
	tx        repository.TxRunner
	rdb       *redis.Client // nil disables the summary cache
	cacheTTL  time.Duration
}

func NewLedgerService(
	inventory repository.InventoryRepository,
	movements repository.StockMovementRepository,
	products repository.ProductRepository,
	tx repository.TxRunner,
	rdb *redis.Client,
	cacheTTL time.Duration,
) LedgerService {
	return &ledgerService{
		inventory: inventory,
		movements: movements,
		products:  products,
		tx:        tx,
		rdb:       rdb,
		cacheTTL:  cacheTTL,
	}
}

func (s *ledgerService) ReserveTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, saleID *uuid.UUID, reason string) (*model.InventoryRecord, error) {
	if qty <= 0 {
		return nil, errors.Wrapf(model.ErrInvalidQuantity, "reserve quantity %d must be positive", qty)
	}
	rec, err := s.inventory.ReserveTx(ctx, tx, productID, qty)
	if err != nil {
		return nil, err
	}

	movementType := model.MovementAdjustment
	if saleID != nil {
		movementType = model.MovementSale
	}
	mov := &model.StockMovement{
		ID:             uuid.New(),
		ProductID:      productID,
		Type:           movementType,
		Quantity:       -qty,
		QuantityBefore: rec.Quantity + qty,
		QuantityAfter:  rec.Quantity,
		Reason:         reason,
		ReferenceID:    saleID,
	}
	if err := s.movements.CreateTx(ctx, tx, mov); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *ledgerService) Reserve(ctx context.Context, productID uuid.UUID, qty int, reason string) (*dto.InventoryRecordResponse, error) {
	if qty <= 0 {
		return nil, errors.Wrapf(model.ErrInvalidQuantity, "reserve quantity %d must be positive", qty)
	}
	if reason == "" {
		reason = "Manual stock-out"
	}

	var rec *model.InventoryRecord
	err := s.tx.RunTx(ctx, func(tx *gorm.DB) error {
		var err error
		rec, err = s.ReserveTx(ctx, tx, productID, qty, nil, reason)
		return err
	})
	if err != nil {
		var stockErr *model.InsufficientStockError
		if errors.As(err, &stockErr) && stockErr.SKU == "" {
			if p, perr := s.products.FindByID(ctx, productID); perr == nil {
				stockErr.SKU = p.SKU
			}
		}
		return nil, err
	}

	s.InvalidateSummary(ctx)
	return s.recordResponse(ctx, rec)
}

func (s *ledgerService) Restock(ctx context.Context, productID uuid.UUID, qty int, when time.Time) (*dto.InventoryRecordResponse, error) {
	if qty <= 0 {
		return nil, errors.Wrapf(model.ErrInvalidQuantity, "restock quantity %d must be positive", qty)
	}

	var rec *model.InventoryRecord
	err := s.tx.RunTx(ctx, func(tx *gorm.DB) error {
		var err error
		rec, err = s.inventory.RestockTx(ctx, tx, productID, qty, when)
		if err != nil {
			return err
		}
		return s.movements.CreateTx(ctx, tx, &model.StockMovement{
			ID:             uuid.New(),
			ProductID:      productID,
			Type:           model.MovementRestock,
			Quantity:       qty,
			QuantityBefore: rec.Quantity - qty,
			QuantityAfter:  rec.Quantity,
			Reason:         fmt.Sprintf("Restock +%d", qty),
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("product_id", productID.String()).Int("quantity", qty).Int("on_hand", rec.Quantity).Msg("inventory restocked")
	s.InvalidateSummary(ctx)
	return s.recordResponse(ctx, rec)
}

// recordResponse attaches catalog fields to a freshly mutated record.
func (s *ledgerService) recordResponse(ctx context.Context, rec *model.InventoryRecord) (*dto.InventoryRecordResponse, error) {
	if rec.Product == nil {
		p, err := s.products.FindByID(ctx, rec.ProductID)
		if err != nil {
			return nil, err
		}
		rec.Product = p
	}
	resp := inventoryToResponse(rec)
	return &resp, nil
}

func (s *ledgerService) ListInventory(ctx context.Context, filter dto.InventoryFilter) (*dto.InventoryListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	records, total, err := s.inventory.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.InventoryRecordResponse, 0, len(records))
	for i := range records {
		data = append(data, inventoryToResponse(&records[i]))
	}
	return &dto.InventoryListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *ledgerService) ListMovements(ctx context.Context, productID uuid.UUID, filter dto.MovementFilter) (*dto.StockMovementListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, err
	}
	movs, total, err := s.movements.List(ctx, repository.StockMovementFilter{
		ProductID: &productID,
		Type:      filter.Type,
		Page:      filter.Page,
		Limit:     filter.Limit,
	})
	if err != nil {
		return nil, err
	}
	data := make([]dto.StockMovementResponse, 0, len(movs))
	for _, m := range movs {
		var ref *string
		if m.ReferenceID != nil {
			id := m.ReferenceID.String()
			ref = &id
		}
		data = append(data, dto.StockMovementResponse{
			ID:             m.ID.String(),
			ProductID:      m.ProductID.String(),
			Type:           m.Type,
			Quantity:       m.Quantity,
			QuantityBefore: m.QuantityBefore,
			QuantityAfter:  m.QuantityAfter,
			Reason:         m.Reason,
			ReferenceID:    ref,
			CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return &dto.StockMovementListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *ledgerService) LowStockReport(ctx context.Context) (*dto.LowStockResponse, error) {
	records, err := s.inventory.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}
	data := make([]dto.InventoryRecordResponse, 0, len(records))
	for i := range records {
		data = append(data, inventoryToResponse(&records[i]))
	}
	return &dto.LowStockResponse{Data: data, Count: len(data)}, nil
}

// InventorySummary runs the three aggregates concurrently. They are not
// mutually consistent; each one is a single query.
func (s *ledgerService) InventorySummary(ctx context.Context) (*dto.InventorySummaryResponse, error) {
	if cached, ok := s.cachedSummary(ctx); ok {
		return cached, nil
	}

	var resp dto.InventorySummaryResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.inventory.CountProducts(gctx)
		resp.TotalProducts = n
		return err
	})
	g.Go(func() error {
		n, err := s.inventory.CountLowStock(gctx)
		resp.LowStockCount = n
		return err
	})
	g.Go(func() error {
		v, err := s.inventory.TotalValuation(gctx)
		resp.TotalValuation = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.storeSummary(ctx, &resp)
	return &resp, nil
}

func (s *ledgerService) cachedSummary(ctx context.Context) (*dto.InventorySummaryResponse, bool) {
	if s.rdb == nil || s.cacheTTL <= 0 {
		return nil, false
	}
	raw, err := s.rdb.Get(ctx, summaryCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("inventory summary cache read failed")
		}
		return nil, false
	}
	var resp dto.InventorySummaryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

func (s *ledgerService) storeSummary(ctx context.Context, resp *dto.InventorySummaryResponse) {
	if s.rdb == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, summaryCacheKey, raw, s.cacheTTL).Err(); err != nil {
		log.Warn().Err(err).Msg("inventory summary cache write failed")
	}
}

func (s *ledgerService) InvalidateSummary(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, summaryCacheKey).Err(); err != nil {
		log.Warn().Err(err).Msg("inventory summary cache invalidation failed")
	}
}

func inventoryToResponse(r *model.InventoryRecord) dto.InventoryRecordResponse {
	resp := dto.InventoryRecordResponse{
		ProductID:    r.ProductID.String(),
		Quantity:     r.Quantity,
		ReorderLevel: r.ReorderLevel,
		NeedsRestock: r.NeedsRestock(),
		Version:      r.Version,
	}
	if r.Product != nil {
		resp.SKU = r.Product.SKU
		resp.ProductName = r.Product.Name
		resp.Price = r.Product.Price
	}
	if r.LastRestockDate != nil {
		d := r.LastRestockDate.Format("2006-01-02")
		resp.LastRestockDate = &d
	}
	return resp
}
