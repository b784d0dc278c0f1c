package service

import (
	"context"
	"testing"

	"github.com/andrewhilario/grocery-pos-backend/internal/dto"
	"github.com/andrewhilario/grocery-pos-backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProduct(t *testing.T) {
	f := newFixture()
	pid := f.store.addProduct("GRO-1", "2.00", "5", 10, 2)
	gone := f.store.addProduct("GRO-2", "2.00", "5", 10, 2)
	f.store.deactivate(gone)

	p, err := f.products.GetProduct(context.Background(), pid)
	require.NoError(t, err)
	assert.Equal(t, "GRO-1", p.SKU)
	assert.Equal(t, 10, p.OnHand)
	assert.Equal(t, 2, p.ReorderLevel)

	_, err = f.products.GetProduct(context.Background(), gone)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.products.GetProduct(context.Background(), uuid.New())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListProducts_Pagination(t *testing.T) {
	f := newFixture()
	for _, sku := range []string{"GRO-1", "GRO-2", "GRO-3"} {
		f.store.addProduct(sku, "1.00", "0", 5, 1)
	}

	resp, err := f.products.ListProducts(context.Background(), dto.ProductFilter{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 2, resp.TotalPages)

	found, err := f.products.ListProducts(context.Background(), dto.ProductFilter{Search: "gro-2"})
	require.NoError(t, err)
	require.Len(t, found.Data, 1)
	assert.Equal(t, "GRO-2", found.Data[0].SKU)
}
