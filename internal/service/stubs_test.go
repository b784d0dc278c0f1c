package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/andrewhilario/grocery-pos-backend/internal/dto"
	"github.com/andrewhilario/grocery-pos-backend/internal/model"
	"github.com/andrewhilario/grocery-pos-backend/internal/repository"
	"github.com/andrewhilario/grocery-pos-backend/internal/worker"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory store ──────────────────────────────────────────────────────────

// memStore backs every stub repository. mu is held for the whole of a
// transaction, which gives the same serialisation a row lock gives per
// product, only coarser.
type memStore struct {
	mu sync.Mutex

	products  map[uuid.UUID]model.Product
	inventory map[uuid.UUID]model.InventoryRecord // by product id
	movements []model.StockMovement
	customers map[uuid.UUID]model.Customer
	sales     map[uuid.UUID]model.Sale
	invoices  map[string]bool

	// failSaleInsert, when set, is returned by SaleRepository.CreateTx.
	failSaleInsert error
}

func newMemStore() *memStore {
	return &memStore{
		products:  make(map[uuid.UUID]model.Product),
		inventory: make(map[uuid.UUID]model.InventoryRecord),
		customers: make(map[uuid.UUID]model.Customer),
		sales:     make(map[uuid.UUID]model.Sale),
		invoices:  make(map[string]bool),
	}
}

// addProduct registers an active product with an inventory record.
func (s *memStore) addProduct(sku, price, taxRate string, quantity, reorder int) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.products[id] = model.Product{
		ID:       id,
		SKU:      sku,
		Name:     "Product " + sku,
		Price:    decimal.RequireFromString(price),
		Cost:     decimal.RequireFromString(price).Div(decimal.NewFromInt(2)),
		TaxRate:  decimal.RequireFromString(taxRate),
		IsActive: true,
	}
	s.inventory[id] = model.InventoryRecord{
		ID:           uuid.New(),
		ProductID:    id,
		Quantity:     quantity,
		ReorderLevel: reorder,
		Version:      1,
	}
	return id
}

func (s *memStore) quantity(productID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventory[productID].Quantity
}

func (s *memStore) deactivate(productID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[productID]
	p.IsActive = false
	s.products[productID] = p
}

func (s *memStore) saleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sales)
}

func (s *memStore) customerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.customers)
}

func (s *memStore) movementsFor(productID uuid.UUID) []model.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StockMovement
	for _, m := range s.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out
}

type memSnapshot struct {
	inventory map[uuid.UUID]model.InventoryRecord
	movements []model.StockMovement
	customers map[uuid.UUID]model.Customer
	sales     map[uuid.UUID]model.Sale
	invoices  map[string]bool
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		inventory: make(map[uuid.UUID]model.InventoryRecord, len(s.inventory)),
		movements: append([]model.StockMovement(nil), s.movements...),
		customers: make(map[uuid.UUID]model.Customer, len(s.customers)),
		sales:     make(map[uuid.UUID]model.Sale, len(s.sales)),
		invoices:  make(map[string]bool, len(s.invoices)),
	}
	for k, v := range s.inventory {
		snap.inventory[k] = v
	}
	for k, v := range s.customers {
		snap.customers[k] = v
	}
	for k, v := range s.sales {
		snap.sales[k] = v
	}
	for k, v := range s.invoices {
		snap.invoices[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.inventory = snap.inventory
	s.movements = snap.movements
	s.customers = snap.customers
	s.sales = snap.sales
	s.invoices = snap.invoices
}

// ── TxRunner ─────────────────────────────────────────────────────────────────

type stubTxRunner struct{ store *memStore }

func (r *stubTxRunner) RunTx(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	snap := r.store.snapshot()
	defer func() {
		if p := recover(); p != nil {
			r.store.restore(snap)
			panic(p)
		}
		if err != nil {
			r.store.restore(snap)
		}
	}()
	return fn(nil)
}

// ── Repositories ─────────────────────────────────────────────────────────────

type stubProductRepo struct{ store *memStore }

func (r *stubProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "product %s", id)
	}
	if rec, ok := r.store.inventory[id]; ok {
		p.Inventory = &rec
	}
	return &p, nil
}

func (r *stubProductRepo) List(_ context.Context, filter dto.ProductFilter) ([]model.Product, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.Product
	for _, p := range r.store.products {
		if !p.IsActive {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Barcode != "" && (p.Barcode == nil || *p.Barcode != filter.Barcode) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, int64(len(out)), nil
}

type stubInventoryRepo struct{ store *memStore }

func (r *stubInventoryRepo) ReserveTx(_ context.Context, _ *gorm.DB, productID uuid.UUID, qty int) (*model.InventoryRecord, error) {
	rec, ok := r.store.inventory[productID]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "inventory record for product %s", productID)
	}
	if rec.Quantity < qty {
		return nil, &model.InsufficientStockError{ProductID: productID, Available: rec.Quantity, Requested: qty}
	}
	rec.Quantity -= qty
	rec.Version++
	r.store.inventory[productID] = rec
	return &rec, nil
}

func (r *stubInventoryRepo) RestockTx(_ context.Context, _ *gorm.DB, productID uuid.UUID, qty int, when time.Time) (*model.InventoryRecord, error) {
	rec, ok := r.store.inventory[productID]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "inventory record for product %s", productID)
	}
	day := time.Date(when.Year(), when.Month(), when.Day(), 0, 0, 0, 0, time.UTC)
	rec.Quantity += qty
	rec.Version++
	rec.LastRestockDate = &day
	r.store.inventory[productID] = rec
	return &rec, nil
}

func (r *stubInventoryRepo) FindByProductID(_ context.Context, productID uuid.UUID) (*model.InventoryRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rec, ok := r.store.inventory[productID]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "inventory record for product %s", productID)
	}
	p := r.store.products[productID]
	rec.Product = &p
	return &rec, nil
}

// activeRecords returns records of active products with Product attached,
// ordered by product name. Caller holds the lock.
func (r *stubInventoryRepo) activeRecords() []model.InventoryRecord {
	var out []model.InventoryRecord
	for id, rec := range r.store.inventory {
		p, ok := r.store.products[id]
		if !ok || !p.IsActive {
			continue
		}
		pc := p
		rec.Product = &pc
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Product.Name < out[j].Product.Name })
	return out
}

func (r *stubInventoryRepo) List(_ context.Context, filter dto.InventoryFilter) ([]model.InventoryRecord, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	records := r.activeRecords()
	if filter.LowStockOnly {
		records = model.LowStock(records)
	}
	return records, int64(len(records)), nil
}

func (r *stubInventoryRepo) ListLowStock(_ context.Context) ([]model.InventoryRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return model.LowStock(r.activeRecords()), nil
}

func (r *stubInventoryRepo) CountProducts(_ context.Context) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(r.activeRecords())), nil
}

func (r *stubInventoryRepo) CountLowStock(_ context.Context) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(model.LowStock(r.activeRecords()))), nil
}

func (r *stubInventoryRepo) TotalValuation(_ context.Context) (decimal.Decimal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return model.Valuation(r.activeRecords()), nil
}

type stubMovementRepo struct{ store *memStore }

func (r *stubMovementRepo) CreateTx(_ context.Context, _ *gorm.DB, m *model.StockMovement) error {
	m.CreatedAt = time.Now()
	r.store.movements = append(r.store.movements, *m)
	return nil
}

func (r *stubMovementRepo) List(_ context.Context, filter repository.StockMovementFilter) ([]model.StockMovement, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.StockMovement
	for _, m := range r.store.movements {
		if filter.ProductID != nil && m.ProductID != *filter.ProductID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

type stubCustomerRepo struct{ store *memStore }

func (r *stubCustomerRepo) FindByEmailTx(_ context.Context, _ *gorm.DB, email string) (*model.Customer, error) {
	for _, c := range r.store.customers {
		if c.Email != nil && *c.Email == email {
			cp := c
			return &cp, nil
		}
	}
	return nil, errors.Wrapf(model.ErrNotFound, "customer %s", email)
}

func (r *stubCustomerRepo) CreateTx(_ context.Context, _ *gorm.DB, c *model.Customer) error {
	if c.Email != nil {
		for _, existing := range r.store.customers {
			if existing.Email != nil && *existing.Email == *c.Email {
				return errors.Wrapf(repository.ErrConflict, "customer email %s", *c.Email)
			}
		}
	}
	c.CreatedAt = time.Now()
	r.store.customers[c.ID] = *c
	return nil
}

func (r *stubCustomerRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Customer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.customers[id]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "customer %s", id)
	}
	return &c, nil
}

type stubSaleRepo struct{ store *memStore }

func (r *stubSaleRepo) CreateTx(_ context.Context, _ *gorm.DB, s *model.Sale) error {
	if r.store.failSaleInsert != nil {
		return r.store.failSaleInsert
	}
	if r.store.invoices[s.InvoiceNumber] {
		return errors.Wrapf(model.ErrDuplicateInvoice, "invoice %s", s.InvoiceNumber)
	}
	cp := *s
	cp.Items = append([]model.SaleItem(nil), s.Items...)
	if s.Receipt != nil {
		rc := *s.Receipt
		cp.Receipt = &rc
	}
	r.store.sales[s.ID] = cp
	r.store.invoices[s.InvoiceNumber] = true
	return nil
}

func (r *stubSaleRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Sale, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.sales[id]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "sale %s", id)
	}
	if s.CustomerID != nil {
		if c, ok := r.store.customers[*s.CustomerID]; ok {
			s.Customer = &c
		}
	}
	return &s, nil
}

func (r *stubSaleRepo) FindReceiptBySaleID(_ context.Context, saleID uuid.UUID) (*model.Receipt, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	s, ok := r.store.sales[saleID]
	if !ok || s.Receipt == nil {
		return nil, errors.Wrapf(model.ErrNotFound, "receipt for sale %s", saleID)
	}
	rc := *s.Receipt
	return &rc, nil
}

func (r *stubSaleRepo) List(_ context.Context, filter dto.SaleFilter) ([]model.Sale, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.Sale
	for _, s := range r.store.sales {
		if filter.PaymentMethod != "" && string(s.PaymentMethod) != filter.PaymentMethod {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SaleDate.After(out[j].SaleDate) })
	return out, int64(len(out)), nil
}

// ── Collaborators ────────────────────────────────────────────────────────────

// seqInvoices hands out the given numbers in order, then falls back to a
// counter.
type seqInvoices struct {
	mu    sync.Mutex
	queue []string
	n     int
}

func (g *seqInvoices) Next(at time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) > 0 {
		next := g.queue[0]
		g.queue = g.queue[1:]
		return next, nil
	}
	g.n++
	return fmt.Sprintf("INV-%s-%06d", at.UTC().Format("20060102"), g.n), nil
}

type stubQueue struct {
	mu   sync.Mutex
	jobs []worker.ReceiptEmailJob
}

func (q *stubQueue) EnqueueReceiptEmail(_ context.Context, job worker.ReceiptEmailJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

// ── Fixture ──────────────────────────────────────────────────────────────────

type fixture struct {
	store     *memStore
	invoices  *seqInvoices
	queue     *stubQueue
	ledger    LedgerService
	customers CustomerService
	sales     SaleService
	products  ProductService
}

func newFixture() *fixture {
	store := newMemStore()
	tx := &stubTxRunner{store: store}
	productRepo := &stubProductRepo{store: store}

	f := &fixture{store: store, invoices: &seqInvoices{}, queue: &stubQueue{}}
	f.ledger = NewLedgerService(&stubInventoryRepo{store: store}, &stubMovementRepo{store: store}, productRepo, tx, nil, 0)
	f.customers = NewCustomerService(&stubCustomerRepo{store: store}, tx)
	f.products = NewProductService(productRepo)
	f.sales = NewSaleService(
		&stubSaleRepo{store: store}, productRepo, f.ledger, f.customers, tx,
		f.invoices, f.queue,
		SaleConfig{StoreName: "Corner Grocery", InvoiceMaxAttempts: 5, CommitTimeout: 5 * time.Second},
	)
	return f
}

var testCashier = Cashier{ID: uuid.New(), Name: "Alice"}

func line(productID uuid.UUID, qty int) dto.SaleItemRequest {
	return dto.SaleItemRequest{ProductID: productID.String(), Quantity: qty}
}

func cart(items ...dto.SaleItemRequest) dto.CommitSaleRequest {
	return dto.CommitSaleRequest{Items: items, PaymentMethod: "cash"}
}

func strPtr(s string) *string { return &s }
