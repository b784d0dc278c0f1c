package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andrewhilario/grocery-pos-backend/internal/dto"
	"github.com/andrewhilario/grocery-pos-backend/internal/model"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type ledgerFeatureContext struct {
	f       *fixture
	skus    map[string]uuid.UUID
	sale    *dto.SaleResponse
	err     error
	results []error
}

func (c *ledgerFeatureContext) reset() {
	c.f = newFixture()
	c.skus = make(map[string]uuid.UUID)
	c.sale = nil
	c.err = nil
	c.results = nil
}

func (c *ledgerFeatureContext) product(sku string) (uuid.UUID, error) {
	id, ok := c.skus[sku]
	if !ok {
		return uuid.Nil, fmt.Errorf("unknown product %q", sku)
	}
	return id, nil
}

// ─── Given ───────────────────────────────────────────────────────────────────

func (c *ledgerFeatureContext) aProductWithTax(sku, price, rate string, onHand int) error {
	c.skus[sku] = c.f.store.addProduct(sku, price, rate, onHand, 0)
	return nil
}

func (c *ledgerFeatureContext) aProductWithReorderLevel(sku, price string, onHand, reorder int) error {
	c.skus[sku] = c.f.store.addProduct(sku, price, "0", onHand, reorder)
	return nil
}

// ─── When ────────────────────────────────────────────────────────────────────

func (c *ledgerFeatureContext) theCashierSells(qty int, sku string) error {
	id, err := c.product(sku)
	if err != nil {
		return err
	}
	c.sale, c.err = c.f.sales.CommitSale(context.Background(), testCashier, cart(line(id, qty)))
	return nil
}

func (c *ledgerFeatureContext) theCashierSellsTwo(qtyA int, skuA string, qtyB int, skuB string) error {
	a, err := c.product(skuA)
	if err != nil {
		return err
	}
	b, err := c.product(skuB)
	if err != nil {
		return err
	}
	c.sale, c.err = c.f.sales.CommitSale(context.Background(), testCashier, cart(line(a, qtyA), line(b, qtyB)))
	return nil
}

func (c *ledgerFeatureContext) twoCashiersSellAtOnce(qty int, sku string) error {
	id, err := c.product(sku)
	if err != nil {
		return err
	}
	c.results = make([]error, 2)
	var wg sync.WaitGroup
	for i := range c.results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, c.results[i] = c.f.sales.CommitSale(context.Background(), testCashier, cart(line(id, qty)))
		}(i)
	}
	wg.Wait()
	return nil
}

func (c *ledgerFeatureContext) unitsAreRestocked(qty int, sku string) error {
	id, err := c.product(sku)
	if err != nil {
		return err
	}
	_, err = c.f.ledger.Restock(context.Background(), id, qty, time.Now())
	return err
}

// ─── Then ────────────────────────────────────────────────────────────────────

func (c *ledgerFeatureContext) theSaleIsCommitted() error {
	if c.err != nil {
		return fmt.Errorf("expected a committed sale, got %v", c.err)
	}
	if c.sale == nil || c.sale.PaymentStatus != string(model.PaymentPaid) {
		return fmt.Errorf("expected a paid sale, got %+v", c.sale)
	}
	return nil
}

func (c *ledgerFeatureContext) amountIs(field func(*dto.SaleResponse) decimal.Decimal) func(string) error {
	return func(want string) error {
		if c.sale == nil {
			return fmt.Errorf("no sale was committed: %v", c.err)
		}
		if got := field(c.sale).StringFixed(2); got != want {
			return fmt.Errorf("expected %s, got %s", want, got)
		}
		return nil
	}
}

func (c *ledgerFeatureContext) hasUnitsOnHand(sku string, want int) error {
	id, err := c.product(sku)
	if err != nil {
		return err
	}
	if got := c.f.store.quantity(id); got != want {
		return fmt.Errorf("%s: expected %d on hand, got %d", sku, want, got)
	}
	return nil
}

func (c *ledgerFeatureContext) theReceiptShows(text string) error {
	if c.sale == nil {
		return fmt.Errorf("no sale was committed: %v", c.err)
	}
	rc, err := c.f.sales.GetReceipt(context.Background(), uuid.MustParse(c.sale.ID))
	if err != nil {
		return err
	}
	if !strings.Contains(rc.Text, text) {
		return fmt.Errorf("receipt does not contain %q:\n%s", text, rc.Text)
	}
	return nil
}

func (c *ledgerFeatureContext) rejectedAsInsufficient(sku string, available int) error {
	var stockErr *model.InsufficientStockError
	if !errors.As(c.err, &stockErr) {
		return fmt.Errorf("expected insufficient stock, got %v", c.err)
	}
	if stockErr.SKU != sku || stockErr.Available != available {
		return fmt.Errorf("expected %s with %d available, got %s with %d", sku, available, stockErr.SKU, stockErr.Available)
	}
	return nil
}

func (c *ledgerFeatureContext) salesAreRecorded(want int) error {
	if got := c.f.store.saleCount(); got != want {
		return fmt.Errorf("expected %d sales, got %d", want, got)
	}
	return nil
}

func (c *ledgerFeatureContext) oneSucceedsOneRejected() error {
	var ok, rejected int
	for _, err := range c.results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrInsufficientStock):
			rejected++
		default:
			return fmt.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != 1 {
		return fmt.Errorf("expected 1 success and 1 rejection, got %d and %d", ok, rejected)
	}
	return nil
}

func (c *ledgerFeatureContext) lowStockMembership(sku, verb string) error {
	id, err := c.product(sku)
	if err != nil {
		return err
	}
	report, err := c.f.ledger.LowStockReport(context.Background())
	if err != nil {
		return err
	}
	listed := false
	for _, r := range report.Data {
		if r.ProductID == id.String() {
			listed = true
		}
	}
	if want := verb == "is"; listed != want {
		return fmt.Errorf("%s: low stock listed=%v, want %v", sku, listed, want)
	}
	return nil
}

func initializeLedgerScenario(ctx *godog.ScenarioContext) {
	c := &ledgerFeatureContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		c.reset()
		return ctx, nil
	})

	ctx.Step(`^a product "([^"]*)" priced (\d+\.\d{2}) with tax rate (\d+(?:\.\d+)?)% and (\d+) units on hand$`, c.aProductWithTax)
	ctx.Step(`^a product "([^"]*)" priced (\d+\.\d{2}) with (\d+) units on hand and reorder level (\d+)$`, c.aProductWithReorderLevel)

	ctx.Step(`^the cashier sells (\d+) units? of "([^"]*)"$`, c.theCashierSells)
	ctx.Step(`^the cashier sells (\d+) units? of "([^"]*)" and (\d+) units? of "([^"]*)"$`, c.theCashierSellsTwo)
	ctx.Step(`^two cashiers each sell (\d+) units? of "([^"]*)" at the same time$`, c.twoCashiersSellAtOnce)
	ctx.Step(`^(\d+) units of "([^"]*)" are restocked$`, c.unitsAreRestocked)

	ctx.Step(`^the sale is committed$`, c.theSaleIsCommitted)
	ctx.Step(`^the sale subtotal is (\d+\.\d{2})$`, c.amountIs(func(s *dto.SaleResponse) decimal.Decimal { return s.Subtotal }))
	ctx.Step(`^the sale tax is (\d+\.\d{2})$`, c.amountIs(func(s *dto.SaleResponse) decimal.Decimal { return s.TaxAmount }))
	ctx.Step(`^the sale total is (\d+\.\d{2})$`, c.amountIs(func(s *dto.SaleResponse) decimal.Decimal { return s.TotalAmount }))
	ctx.Step(`^"([^"]*)" has (\d+) units on hand$`, c.hasUnitsOnHand)
	ctx.Step(`^the receipt shows "([^"]*)"$`, c.theReceiptShows)
	ctx.Step(`^the sale is rejected as insufficient stock for "([^"]*)" with (\d+) available$`, c.rejectedAsInsufficient)
	ctx.Step(`^exactly (\d+) sales? (?:is|are) recorded$`, c.salesAreRecorded)
	ctx.Step(`^exactly one sale succeeds and one is rejected as insufficient stock$`, c.oneSucceedsOneRejected)
	ctx.Step(`^"([^"]*)" (is|is not) on the low stock report$`, c.lowStockMembership)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "ledger",
		ScenarioInitializer: initializeLedgerScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
