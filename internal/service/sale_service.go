package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/andrewhilario/grocery-pos-backend/internal/dto"
	"github.com/andrewhilario/grocery-pos-backend/internal/infra"
	"github.com/andrewhilario/grocery-pos-backend/internal/model"
	"github.com/andrewhilario/grocery-pos-backend/internal/repository"
	"github.com/andrewhilario/grocery-pos-backend/internal/worker"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Commit workflow states, logged on every transition.
const (
	stateDraft     = "draft"
	stateReserving = "reserving"
	stateCommitted = "committed"
	stateFailed    = "failed"
)

const (
	defaultInvoiceAttempts = 5
	defaultCommitTimeout   = 10 * time.Second
)

// Cashier is the authenticated principal recorded on a sale.
type Cashier struct {
	ID   uuid.UUID
	Name string
}

// SaleConfig tunes the commit workflow.
type SaleConfig struct {
	StoreName          string
	InvoiceMaxAttempts int
	CommitTimeout      time.Duration
}

// ReceiptQueue accepts best-effort receipt deliveries.
type ReceiptQueue interface {
	EnqueueReceiptEmail(ctx context.Context, job worker.ReceiptEmailJob) error
}

type SaleService interface {
	// CommitSale turns a cart into a committed sale with its receipt. Either
	// everything is persisted or nothing is.
	CommitSale(ctx context.Context, cashier Cashier, req dto.CommitSaleRequest) (*dto.SaleResponse, error)
	GetSale(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error)
	ListSales(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error)
	GetReceipt(ctx context.Context, saleID uuid.UUID) (*dto.ReceiptResponse, error)
	ReceiptPDF(ctx context.Context, saleID uuid.UUID) ([]byte, string, error)
	EmailReceipt(ctx context.Context, saleID uuid.UUID, override *string) (*dto.EmailReceiptResponse, error)
}

type saleService struct {
	sales     repository.SaleRepository
	products  repository.ProductRepository
	ledger    LedgerService
	customers CustomerService
	tx        repository.TxRunner
	invoices  InvoiceGenerator
	queue     ReceiptQueue
	cfg       SaleConfig
	now       func() time.Time
}

func NewSaleService(
	sales repository.SaleRepository,
	products repository.ProductRepository,
	ledger LedgerService,
	customers CustomerService,
	tx repository.TxRunner,
	invoices InvoiceGenerator,
	queue ReceiptQueue,
	cfg SaleConfig,
) SaleService {
	if cfg.InvoiceMaxAttempts <= 0 {
		cfg.InvoiceMaxAttempts = defaultInvoiceAttempts
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = defaultCommitTimeout
	}
	return &saleService{
		sales:     sales,
		products:  products,
		ledger:    ledger,
		customers: customers,
		tx:        tx,
		invoices:  invoices,
		queue:     queue,
		cfg:       cfg,
		now:       time.Now,
	}
}

// cartLine is a parsed, validated line item.
type cartLine struct {
	productID       uuid.UUID
	quantity        int
	discountPercent decimal.Decimal
}

// reservation is the cart-wide quantity for one product.
type reservation struct {
	productID uuid.UUID
	quantity  int
}

// ── CommitSale ───────────────────────────────────────────────────────────────
//   1. Validate payload (no I/O)
//   2. Load products outside the transaction; missing or inactive → NotFound
//   3. Build the aggregate and compute totals (fails before any mutation)
//   4. BEGIN TX: resolve customer, reserve stock in product_id order,
//      assign invoice number (retry on collision), insert sale+items+receipt
//   5. COMMIT

func (s *saleService) CommitSale(ctx context.Context, cashier Cashier, req dto.CommitSaleRequest) (*dto.SaleResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CommitTimeout)
	defer cancel()

	logger := log.With().Str("user_id", cashier.ID.String()).Int("lines", len(req.Items)).Logger()
	logger.Debug().Str("state", stateDraft).Msg("sale commit")

	sale, customerIn, plan, err := s.draft(ctx, cashier, req)
	if err != nil {
		logger.Debug().Str("state", stateFailed).Err(err).Msg("sale commit")
		return nil, err
	}

	var customer *model.Customer
	err = s.tx.RunTx(ctx, func(tx *gorm.DB) error {
		logger.Debug().Str("state", stateReserving).Str("sale_id", sale.ID.String()).Msg("sale commit")

		var err error
		customer, err = s.customers.ResolveTx(ctx, tx, customerIn)
		if err != nil {
			return err
		}
		if customer != nil {
			sale.CustomerID = &customer.ID
		}

		for _, r := range plan {
			if _, err := s.ledger.ReserveTx(ctx, tx, r.productID, r.quantity, &sale.ID, "Sale "+sale.ID.String()); err != nil {
				return err
			}
		}

		sale.PaymentStatus = model.PaymentPaid
		sale.SaleDate = s.now().UTC()
		return s.persist(ctx, tx, sale, cashier, customer, logger)
	})
	if err != nil {
		err = s.enrichStockError(ctx, err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = errors.Wrap(context.DeadlineExceeded, "sale commit timed out")
		}
		logger.Debug().Str("state", stateFailed).Err(err).Msg("sale commit")
		return nil, err
	}

	sale.Customer = customer
	s.ledger.InvalidateSummary(context.WithoutCancel(ctx))
	logger.Debug().Str("state", stateCommitted).Msg("sale commit")
	log.Info().
		Str("sale_id", sale.ID.String()).
		Str("invoice", sale.InvoiceNumber).
		Str("total", sale.TotalAmount.StringFixed(2)).
		Int("items", sale.ItemCount()).
		Msg("sale committed")

	return saleToResponse(sale), nil
}

// draft validates the request and builds the priced aggregate. It performs
// reads only.
func (s *saleService) draft(ctx context.Context, cashier Cashier, req dto.CommitSaleRequest) (*model.Sale, *model.CustomerInput, []reservation, error) {
	if cashier.ID == uuid.Nil {
		return nil, nil, nil, errors.Wrap(model.ErrNotFound, "sale requires an authenticated user")
	}
	if len(req.Items) == 0 {
		return nil, nil, nil, errors.Wrap(model.ErrInvalidQuantity, "sale has no line items")
	}

	customerIn := customerInput(req.Customer)
	if customerIn != nil {
		norm, err := customerIn.Normalize()
		if err != nil {
			return nil, nil, nil, err
		}
		customerIn = &norm
	}

	lines, err := parseLines(req.Items)
	if err != nil {
		return nil, nil, nil, err
	}

	sale, err := model.NewSale(cashier.ID, model.PaymentMethod(req.PaymentMethod), req.DiscountAmount)
	if err != nil {
		return nil, nil, nil, err
	}

	products := make(map[uuid.UUID]*model.Product, len(lines))
	for _, l := range lines {
		p, ok := products[l.productID]
		if !ok {
			p, err = s.products.FindByID(ctx, l.productID)
			if err != nil {
				return nil, nil, nil, err
			}
			if !p.IsActive {
				return nil, nil, nil, errors.Wrapf(model.ErrNotFound, "product %s is inactive", p.SKU)
			}
			products[l.productID] = p
		}
		if err := sale.AddItem(p, l.quantity, l.discountPercent); err != nil {
			return nil, nil, nil, err
		}
	}
	if err := sale.CalculateTotals(); err != nil {
		return nil, nil, nil, err
	}

	return sale, customerIn, reservationPlan(lines), nil
}

// persist assigns an invoice number and inserts the sale, retrying with a
// fresh number while the store reports a collision.
func (s *saleService) persist(ctx context.Context, tx *gorm.DB, sale *model.Sale, cashier Cashier, customer *model.Customer, logger zerolog.Logger) error {
	for attempt := 1; attempt <= s.cfg.InvoiceMaxAttempts; attempt++ {
		invoice, err := s.invoices.Next(sale.SaleDate)
		if err != nil {
			return errors.Wrapf(model.ErrInvoiceGenerationFailed, "generate invoice number: %v", err)
		}
		sale.InvoiceNumber = invoice
		sale.Receipt = model.NewReceipt(sale, s.cfg.StoreName, cashier.Name, customer)

		err = s.sales.CreateTx(ctx, tx, sale)
		if err == nil {
			return nil
		}
		if !errors.Is(err, model.ErrDuplicateInvoice) {
			return err
		}
		logger.Warn().Str("invoice", invoice).Int("attempt", attempt).Msg("invoice number collision, retrying")
	}
	return errors.Wrapf(model.ErrInvoiceGenerationFailed, "no unique invoice number after %d attempts", s.cfg.InvoiceMaxAttempts)
}

// enrichStockError fills the SKU of an insufficient-stock failure.
func (s *saleService) enrichStockError(ctx context.Context, err error) error {
	var stockErr *model.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.SKU != "" {
		return err
	}
	if p, perr := s.products.FindByID(context.WithoutCancel(ctx), stockErr.ProductID); perr == nil {
		stockErr.SKU = p.SKU
	}
	return err
}

func parseLines(items []dto.SaleItemRequest) ([]cartLine, error) {
	lines := make([]cartLine, 0, len(items))
	for i, item := range items {
		pid, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, errors.Wrapf(model.ErrInvalidQuantity, "line %d: malformed product_id %q", i+1, item.ProductID)
		}
		if item.Quantity <= 0 {
			return nil, errors.Wrapf(model.ErrInvalidQuantity, "line %d: quantity %d must be positive", i+1, item.Quantity)
		}
		lines = append(lines, cartLine{productID: pid, quantity: item.Quantity, discountPercent: item.DiscountPercent})
	}
	return lines, nil
}

// reservationPlan merges lines per product and orders them by product id so
// concurrent commits acquire row locks in the same order.
func reservationPlan(lines []cartLine) []reservation {
	totals := make(map[uuid.UUID]int, len(lines))
	for _, l := range lines {
		totals[l.productID] += l.quantity
	}
	plan := make([]reservation, 0, len(totals))
	for id, qty := range totals {
		plan = append(plan, reservation{productID: id, quantity: qty})
	}
	sort.Slice(plan, func(i, j int) bool {
		return plan[i].productID.String() < plan[j].productID.String()
	})
	return plan
}

// ── Reads ────────────────────────────────────────────────────────────────────

func (s *saleService) GetSale(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.sales.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return saleToResponse(sale), nil
}

func (s *saleService) ListSales(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	sales, total, err := s.sales.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.SaleResponse, 0, len(sales))
	for i := range sales {
		data = append(data, *saleToResponse(&sales[i]))
	}
	return &dto.SaleListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *saleService) GetReceipt(ctx context.Context, saleID uuid.UUID) (*dto.ReceiptResponse, error) {
	rc, err := s.sales.FindReceiptBySaleID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return receiptToResponse(rc), nil
}

func (s *saleService) ReceiptPDF(ctx context.Context, saleID uuid.UUID) ([]byte, string, error) {
	rc, err := s.sales.FindReceiptBySaleID(ctx, saleID)
	if err != nil {
		return nil, "", err
	}
	pdf, err := infra.RenderReceiptPDF(rc.Content.Data())
	if err != nil {
		return nil, "", errors.Wrap(err, "render receipt pdf")
	}
	return pdf, rc.ReceiptNumber + ".pdf", nil
}

// EmailReceipt queues delivery of the receipt. Delivery is never part of the
// commit and may fail independently of it.
func (s *saleService) EmailReceipt(ctx context.Context, saleID uuid.UUID, override *string) (*dto.EmailReceiptResponse, error) {
	sale, err := s.sales.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Receipt == nil {
		return nil, errors.Wrapf(model.ErrNotFound, "receipt for sale %s", saleID)
	}

	var to string
	switch {
	case override != nil && *override != "":
		to = *override
	case sale.Customer != nil && sale.Customer.Email != nil:
		to = *sale.Customer.Email
	default:
		return nil, errors.Wrap(model.ErrInvalidCustomer, "no e-mail address for receipt")
	}
	if s.queue == nil {
		return nil, errors.New("receipt delivery is not configured")
	}

	content := sale.Receipt.Content.Data()
	job := worker.ReceiptEmailJob{
		To:      to,
		Subject: fmt.Sprintf("Your receipt %s", content.ReceiptNumber),
		Receipt: content,
	}
	if err := s.queue.EnqueueReceiptEmail(ctx, job); err != nil {
		return nil, errors.Wrap(err, "enqueue receipt e-mail")
	}
	return &dto.EmailReceiptResponse{Queued: true, To: to}, nil
}

// ── Mapping ──────────────────────────────────────────────────────────────────

func saleToResponse(sale *model.Sale) *dto.SaleResponse {
	items := make([]dto.SaleItemResponse, 0, len(sale.Items))
	for _, item := range sale.Items {
		items = append(items, dto.SaleItemResponse{
			ID:              item.ID.String(),
			ProductID:       item.ProductID.String(),
			SKU:             item.SKU,
			ProductName:     item.ProductName,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			UnitCost:        item.UnitCost,
			TaxRate:         item.TaxRate,
			DiscountPercent: item.DiscountPercent,
			TotalPrice:      item.TotalPrice,
		})
	}
	resp := &dto.SaleResponse{
		ID:             sale.ID.String(),
		InvoiceNumber:  sale.InvoiceNumber,
		UserID:         sale.UserID.String(),
		Subtotal:       sale.Subtotal,
		TaxAmount:      sale.TaxAmount,
		DiscountAmount: sale.DiscountAmount,
		TotalAmount:    sale.TotalAmount,
		PaymentMethod:  string(sale.PaymentMethod),
		PaymentStatus:  string(sale.PaymentStatus),
		SaleDate:       sale.SaleDate.UTC().Format(time.RFC3339),
		Items:          items,
	}
	if sale.CustomerID != nil {
		id := sale.CustomerID.String()
		resp.CustomerID = &id
	}
	if sale.Receipt != nil {
		resp.ReceiptNumber = sale.Receipt.ReceiptNumber
	}
	return resp
}

func receiptToResponse(rc *model.Receipt) *dto.ReceiptResponse {
	c := rc.Content.Data()
	lines := make([]dto.ReceiptLineResponse, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, dto.ReceiptLineResponse{
			SKU:             l.SKU,
			Name:            l.Name,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			TaxRate:         l.TaxRate,
			DiscountPercent: l.DiscountPercent,
			Total:           l.Total,
		})
	}
	return &dto.ReceiptResponse{
		ReceiptNumber:  rc.ReceiptNumber,
		InvoiceNumber:  c.InvoiceNumber,
		StoreName:      c.StoreName,
		SaleDate:       c.SaleDate.UTC().Format(time.RFC3339),
		Cashier:        c.Cashier,
		Customer:       c.Customer,
		Lines:          lines,
		Subtotal:       c.Subtotal,
		TaxAmount:      c.TaxAmount,
		DiscountAmount: c.DiscountAmount,
		TotalAmount:    c.TotalAmount,
		PaymentMethod:  c.PaymentMethod,
		Text:           c.Render(),
	}
}
