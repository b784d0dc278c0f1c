package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andrewhilario/grocery-pos-backend/internal/dto"
	"github.com/andrewhilario/grocery-pos-backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestock_ClearsLowStock(t *testing.T) {
	f := newFixture()
	pid := f.store.addProduct("GRO-1", "2.00", "5", 10, 12)

	low, err := f.ledger.LowStockReport(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, low.Count)
	assert.Equal(t, pid.String(), low.Data[0].ProductID)
	assert.True(t, low.Data[0].NeedsRestock)

	when := time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)
	rec, err := f.ledger.Restock(context.Background(), pid, 5, when)
	require.NoError(t, err)
	assert.Equal(t, 15, rec.Quantity)
	assert.False(t, rec.NeedsRestock)
	assert.Equal(t, "GRO-1", rec.SKU)
	require.NotNil(t, rec.LastRestockDate)
	assert.Equal(t, "2024-03-15", *rec.LastRestockDate)
	assert.Equal(t, 2, rec.Version)

	low, err = f.ledger.LowStockReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, low.Count)

	movs := f.store.movementsFor(pid)
	require.Len(t, movs, 1)
	assert.Equal(t, model.MovementRestock, movs[0].Type)
	assert.Equal(t, 5, movs[0].Quantity)
	assert.Equal(t, 10, movs[0].QuantityBefore)
	assert.Equal(t, 15, movs[0].QuantityAfter)
}

func TestRestock_AtReorderLevelStillNeedsRestock(t *testing.T) {
	f := newFixture()
	pid := f.store.addProduct("GRO-1", "2.00", "5", 7, 12)

	rec, err := f.ledger.Restock(context.Background(), pid, 5, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 12, rec.Quantity)
	assert.True(t, rec.NeedsRestock)
}

func TestRestock_Rejections(t *testing.T) {
	f := newFixture()
	pid := f.store.addProduct("GRO-1", "2.00", "5", 10, 2)

	_, err := f.ledger.Restock(context.Background(), pid, 0, time.Now())
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)

	_, err = f.ledger.Restock(context.Background(), pid, -4, time.Now())
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)

	_, err = f.ledger.Restock(context.Background(), uuid.New(), 3, time.Now())
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.Equal(t, 10, f.store.quantity(pid))
	assert.Empty(t, f.store.movementsFor(pid))
}

func TestReserve_WritesAdjustmentMovement(t *testing.T) {
	f := newFixture()
	pid := f.store.addProduct("GRO-1", "2.00", "5", 10, 2)

	rec, err := f.ledger.Reserve(context.Background(), pid, 4, "")
	require.NoError(t, err)
	assert.Equal(t, 6, rec.Quantity)
	assert.Equal(t, "GRO-1", rec.SKU)

	movs := f.store.movementsFor(pid)
	require.Len(t, movs, 1)
	assert.Equal(t, model.MovementAdjustment, movs[0].Type)
	assert.Equal(t, -4, movs[0].Quantity)
	assert.Equal(t, "Manual stock-out", movs[0].Reason)
	assert.Nil(t, movs[0].ReferenceID)
}

func TestReserve_ExactQuantityEmptiesStock(t *testing.T) {
	f := newFixture()
	pid := f.store.addProduct("GRO-1", "2.00", "5", 4, 2)

	rec, err := f.ledger.Reserve(context.Background(), pid, 4, "damaged")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Quantity)
	assert.True(t, rec.NeedsRestock)
}

func TestReserve_Rejections(t *testing.T) {
	f := newFixture()
	pid := f.store.addProduct("GRO-1", "2.00", "5", 3, 2)

	_, err := f.ledger.Reserve(context.Background(), pid, 0, "")
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)

	_, err = f.ledger.Reserve(context.Background(), uuid.New(), 1, "")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.ledger.Reserve(context.Background(), pid, 4, "")
	var stockErr *model.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "GRO-1", stockErr.SKU)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 4, stockErr.Requested)

	assert.Equal(t, 3, f.store.quantity(pid))
	assert.Empty(t, f.store.movementsFor(pid))
}

func TestReserve_ConcurrentRequestsNeverOversell(t *testing.T) {
	f := newFixture()
	const stock, requests = 7, 20
	pid := f.store.addProduct("GRO-1", "1.00", "0", stock, 0)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Reserve(context.Background(), pid, 1, "")
			if err == nil {
				succeeded.Add(1)
				return
			}
			if assert.ErrorIs(t, err, model.ErrInsufficientStock) {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, stock, succeeded.Load())
	assert.EqualValues(t, requests-stock, rejected.Load())
	assert.Equal(t, 0, f.store.quantity(pid))
}

func TestInventorySummary(t *testing.T) {
	f := newFixture()
	f.store.addProduct("GRO-1", "2.00", "5", 10, 12)
	f.store.addProduct("GRO-2", "1.50", "0", 4, 2)
	gone := f.store.addProduct("GRO-3", "9.99", "0", 100, 0)
	f.store.deactivate(gone)

	sum, err := f.ledger.InventorySummary(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, sum.TotalProducts)
	assert.EqualValues(t, 1, sum.LowStockCount)
	assertMoney(t, "26.00", sum.TotalValuation)
}

func TestListInventory(t *testing.T) {
	f := newFixture()
	f.store.addProduct("GRO-1", "2.00", "5", 10, 12)
	f.store.addProduct("GRO-2", "1.50", "0", 40, 2)

	all, err := f.ledger.ListInventory(context.Background(), dto.InventoryFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)
	assert.Equal(t, 1, all.Page)
	assert.Equal(t, 50, all.Limit)

	low, err := f.ledger.ListInventory(context.Background(), dto.InventoryFilter{LowStockOnly: true, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, low.Data, 1)
	assert.Equal(t, "GRO-1", low.Data[0].SKU)
}

func TestListMovements(t *testing.T) {
	f := newFixture()
	pid := f.store.addProduct("GRO-1", "2.00", "5", 10, 2)

	_, err := f.ledger.Restock(context.Background(), pid, 5, time.Now())
	require.NoError(t, err)
	_, err = f.ledger.Reserve(context.Background(), pid, 2, "breakage")
	require.NoError(t, err)

	all, err := f.ledger.ListMovements(context.Background(), pid, dto.MovementFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)

	restocks, err := f.ledger.ListMovements(context.Background(), pid, dto.MovementFilter{Type: model.MovementRestock})
	require.NoError(t, err)
	require.Len(t, restocks.Data, 1)
	assert.Equal(t, 5, restocks.Data[0].Quantity)

	_, err = f.ledger.ListMovements(context.Background(), uuid.New(), dto.MovementFilter{})
	assert.ErrorIs(t, err, model.ErrNotFound)
}
