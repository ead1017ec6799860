package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/tu-usuario/warehouse-ledger/internal/application/auth"
	appledger "github.com/tu-usuario/warehouse-ledger/internal/application/ledger"
	"github.com/tu-usuario/warehouse-ledger/internal/application/usecase"
	infrapdf "github.com/tu-usuario/warehouse-ledger/internal/infrastructure/pdf"
	"github.com/tu-usuario/warehouse-ledger/internal/infrastructure/postgres"
	httpRouter "github.com/tu-usuario/warehouse-ledger/internal/interfaces/http"
	"github.com/tu-usuario/warehouse-ledger/pkg/config"
	"github.com/tu-usuario/warehouse-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migración de esquema")
	}

	categoryRepo := postgres.NewCategoryRepository(pool)
	itemRepo := postgres.NewItemRepository(pool)
	warehouseRepo := postgres.NewWarehouseRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	movementRepo := postgres.NewStockMovementRepository(pool)
	stockRepo := postgres.NewStockRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	ledgerSvc := appledger.NewService(txRunner, itemRepo, warehouseRepo, movementRepo, stockRepo, log)
	categoryUC := usecase.NewCategoryUseCase(categoryRepo)
	itemUC := usecase.NewItemUseCase(itemRepo, categoryRepo)
	warehouseUC := usecase.NewWarehouseUseCase(warehouseRepo, stockRepo)
	userUC := usecase.NewUserUseCase(userRepo)
	stockQueryUC := usecase.NewStockQueryUseCase(stockRepo, movementRepo, itemRepo, warehouseRepo)
	authUC := auth.NewAuthUseCase(userRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	stockReport := infrapdf.NewStockReportGenerator()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Warehouse Ledger API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		CategoryUC:  categoryUC,
		ItemUC:      itemUC,
		WarehouseUC: warehouseUC,
		UserUC:      userUC,
		StockQuery:  stockQueryUC,
		Ledger:      ledgerSvc,
		AuthUC:      authUC,
		StockReport: stockReport,
		AppName:     cfg.App.Name,
		JWTSecret:   cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
