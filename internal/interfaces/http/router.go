package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/warehouse-ledger/internal/application/auth"
	appledger "github.com/tu-usuario/warehouse-ledger/internal/application/ledger"
	"github.com/tu-usuario/warehouse-ledger/internal/application/usecase"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/entity"
	"github.com/tu-usuario/warehouse-ledger/internal/infrastructure/pdf"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	CategoryUC  *usecase.CategoryUseCase
	ItemUC      *usecase.ItemUseCase
	WarehouseUC *usecase.WarehouseUseCase
	UserUC      *usecase.UserUseCase
	StockQuery  *usecase.StockQueryUseCase
	Ledger      *appledger.Service
	AuthUC      *auth.AuthUseCase
	StockReport *pdf.StockReportGenerator
	AppName     string
	JWTSecret   string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Las mutaciones de catálogo y de stock requieren rol admin o manager;
	// las lecturas las puede hacer cualquier usuario autenticado.
	writer := RequireRole(entity.RoleAdmin, entity.RoleManager)
	adminOnly := RequireRole(entity.RoleAdmin)

	// Categories (protegido)
	categories := protected.Group("/categories")
	categoryHandler := NewCategoryHandler(deps.CategoryUC)
	categories.Get("/", categoryHandler.List)
	categories.Get("/:id", categoryHandler.GetByID)
	categories.Post("/", writer, categoryHandler.Create)
	categories.Put("/:id", writer, categoryHandler.Update)
	categories.Delete("/:id", writer, categoryHandler.Delete)

	// Items (protegido)
	items := protected.Group("/items")
	itemHandler := NewItemHandler(deps.ItemUC)
	items.Get("/", itemHandler.List)
	items.Get("/:id", itemHandler.GetByID)
	items.Post("/", writer, itemHandler.Create)
	items.Put("/:id", writer, itemHandler.Update)
	items.Delete("/:id", writer, itemHandler.Delete)

	// Warehouses (protegido)
	warehouses := protected.Group("/warehouses")
	warehouseHandler := NewWarehouseHandler(deps.WarehouseUC)
	warehouses.Get("/", warehouseHandler.List)
	warehouses.Get("/:id", warehouseHandler.GetByID)
	warehouses.Post("/", writer, warehouseHandler.Create)
	warehouses.Put("/:id", writer, warehouseHandler.Update)
	warehouses.Delete("/:id", writer, warehouseHandler.Delete)

	// Stock y movimientos (protegido)
	stock := protected.Group("/stock")
	stockHandler := NewStockHandler(deps.StockQuery, deps.StockReport, deps.AppName)
	movementHandler := NewMovementHandler(deps.Ledger, deps.StockQuery)
	stock.Get("/", stockHandler.ListAll)
	stock.Get("/level", stockHandler.GetLevel)
	stock.Get("/report", stockHandler.Report)
	stock.Get("/reconcile", movementHandler.Reconcile)
	stock.Get("/items/:id", stockHandler.ListByItem)
	stock.Get("/warehouses/:id", stockHandler.ListByWarehouse)
	stock.Get("/movements", movementHandler.List)
	stock.Get("/movements/:id", movementHandler.GetByID)
	stock.Post("/movements", writer, movementHandler.Register)

	// Users (solo admin)
	users := protected.Group("/users", adminOnly)
	userHandler := NewUserHandler(deps.UserUC)
	users.Get("/", userHandler.List)
	users.Get("/:id", userHandler.GetByID)
	users.Put("/:id", userHandler.Update)
	users.Delete("/:id", userHandler.Delete)
}
