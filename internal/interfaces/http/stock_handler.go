package http

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/warehouse-ledger/internal/application/dto"
	"github.com/tu-usuario/warehouse-ledger/internal/application/usecase"
	"github.com/tu-usuario/warehouse-ledger/internal/domain"
	"github.com/tu-usuario/warehouse-ledger/internal/infrastructure/pdf"
)

// StockHandler expone las consultas de niveles de stock (protegido).
type StockHandler struct {
	queries *usecase.StockQueryUseCase
	report  *pdf.StockReportGenerator
	appName string
}

// NewStockHandler construye el handler.
func NewStockHandler(queries *usecase.StockQueryUseCase, report *pdf.StockReportGenerator, appName string) *StockHandler {
	return &StockHandler{queries: queries, report: report, appName: appName}
}

// GetLevel godoc
// @Summary      Nivel de stock de un par (ítem, bodega)
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        item_id       query  string  true  "Ítem"
// @Param        warehouse_id  query  string  true  "Bodega"
// @Success      200  {object}  dto.StockResponse
// @Router       /api/stock/level [get]
func (h *StockHandler) GetLevel(c *fiber.Ctx) error {
	itemID := c.Query("item_id")
	warehouseID := c.Query("warehouse_id")
	if itemID == "" || warehouseID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "item_id y warehouse_id son requeridos"})
	}
	out, err := h.queries.GetLevel(c.Context(), itemID, warehouseID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// ListAll godoc
// @Summary      Listar todos los agregados de stock
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        limit   query  int  false  "Límite"  default(20)
// @Param        offset  query  int  false  "Offset"  default(0)
// @Success      200  {array}  dto.StockResponse
// @Router       /api/stock [get]
func (h *StockHandler) ListAll(c *fiber.Ctx) error {
	limit, offset := pageParams(c)
	out, err := h.queries.ListAll(c.Context(), limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// ListByItem godoc
// @Summary      Stock de un ítem en todas las bodegas
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del ítem"
// @Success      200  {array}   dto.StockResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/items/{id} [get]
func (h *StockHandler) ListByItem(c *fiber.Ctx) error {
	out, err := h.queries.ListByItem(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "ítem no encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// ListByWarehouse godoc
// @Summary      Stock de todos los ítems de una bodega
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la bodega"
// @Success      200  {array}   dto.StockResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/warehouses/{id} [get]
func (h *StockHandler) ListByWarehouse(c *fiber.Ctx) error {
	out, err := h.queries.ListByWarehouse(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "bodega no encontrada"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// Report godoc
// @Summary      Reporte PDF de niveles de stock
// @Tags         stock
// @Security     Bearer
// @Produce      application/pdf
// @Success      200  {file}    file
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/stock/report [get]
func (h *StockHandler) Report(c *fiber.Ctx) error {
	rows, err := h.queries.ListAll(c.Context(), 1000, 0)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	pdfBytes, err := h.report.GenerateStockReport(c.Context(), h.appName, rows)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "PDF_ERROR", Message: err.Error()})
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="stock-%s.pdf"`, time.Now().Format("20060102")))
	return c.Send(pdfBytes)
}
