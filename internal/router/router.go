package router

import (
	"github.com/andrewhilario/grocery-pos-backend/internal/config"
	"github.com/andrewhilario/grocery-pos-backend/internal/handler"
	"github.com/andrewhilario/grocery-pos-backend/internal/infra"
	"github.com/andrewhilario/grocery-pos-backend/internal/middleware"
	"github.com/andrewhilario/grocery-pos-backend/internal/model"
	"github.com/andrewhilario/grocery-pos-backend/internal/repository"
	"github.com/andrewhilario/grocery-pos-backend/internal/service"
	"github.com/andrewhilario/grocery-pos-backend/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, dispatcher *worker.Dispatcher, mailCB *infra.Breaker) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(rdb, middleware.APILimit))

	// ── Repositories ─────────────────────────────────────────────────────────
	txRunner := repository.NewTxRunner(db)
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	saleRepo := repository.NewSaleRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(userRepo, cfg)
	productSvc := service.NewProductService(productRepo)
	ledgerSvc := service.NewLedgerService(inventoryRepo, movementRepo, productRepo, txRunner, rdb, cfg.SummaryCacheTTL)
	customerSvc := service.NewCustomerService(customerRepo, txRunner)

	var queue service.ReceiptQueue
	if dispatcher != nil {
		queue = dispatcher
	}
	saleSvc := service.NewSaleService(
		saleRepo, productRepo, ledgerSvc, customerSvc, txRunner,
		service.NewInvoiceGenerator(), queue,
		service.SaleConfig{
			StoreName:          cfg.StoreName,
			InvoiceMaxAttempts: cfg.InvoiceMaxAttempts,
			CommitTimeout:      cfg.SaleCommitTimeout,
		},
	)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	productsH := handler.NewProductsHandler(productSvc)
	inventoryH := handler.NewInventoryHandler(ledgerSvc)
	customersH := handler.NewCustomersHandler(customerSvc)
	salesH := handler.NewSalesHandler(saleSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, mailCB))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.RateLimiter(rdb, middleware.LoginLimit), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	anyRole := middleware.RequireRole(model.RoleCashier, model.RoleManager, model.RoleAdmin)
	managers := middleware.RequireRole(model.RoleManager, model.RoleAdmin)

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		sales := v1.Group("/sales", anyRole)
		{
			sales.POST("", salesH.CommitSale)
			sales.GET("", salesH.ListSales)
			sales.GET("/:id", salesH.GetSale)
			sales.GET("/:id/receipt", salesH.GetReceipt)
			sales.GET("/:id/receipt/pdf", salesH.GetReceiptPDF)
			sales.POST("/:id/receipt/email", salesH.EmailReceipt)
		}

		inv := v1.Group("/inventory")
		{
			inv.GET("", anyRole, inventoryH.List)
			inv.GET("/low-stock", anyRole, inventoryH.LowStock)
			inv.GET("/summary", managers, inventoryH.Summary)
			inv.GET("/:product_id/movements", managers, inventoryH.Movements)
			inv.POST("/:product_id/restock", managers, inventoryH.Restock)
			inv.POST("/:product_id/reserve", managers, inventoryH.Reserve)
		}

		v1.GET("/products", anyRole, productsH.List)
		v1.GET("/products/:id", anyRole, productsH.Get)

		v1.POST("/customers", anyRole, customersH.Create)
	}

	return r
}
