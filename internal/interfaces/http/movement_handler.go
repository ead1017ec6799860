package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/warehouse-ledger/internal/application/dto"
	appledger "github.com/tu-usuario/warehouse-ledger/internal/application/ledger"
	"github.com/tu-usuario/warehouse-ledger/internal/application/usecase"
	"github.com/tu-usuario/warehouse-ledger/internal/domain"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/entity"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/repository"
)

// MovementHandler maneja el registro y la consulta de movimientos del ledger (protegido).
type MovementHandler struct {
	ledger  *appledger.Service
	queries *usecase.StockQueryUseCase
}

// NewMovementHandler construye el handler.
func NewMovementHandler(ledger *appledger.Service, queries *usecase.StockQueryUseCase) *MovementHandler {
	return &MovementHandler{ledger: ledger, queries: queries}
}

// Register godoc
// @Summary      Registrar movimiento de stock (entrada o salida FIFO)
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterMovementRequest  true  "item_id, warehouse_id, type, quantity, price, movement_date"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/movements [post]
func (h *MovementHandler) Register(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.RegisterMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}

	movementDate := time.Now()
	if in.MovementDate != nil {
		movementDate = *in.MovementDate
	}
	input := appledger.MovementInput{
		ItemID:       in.ItemID,
		WarehouseID:  in.WarehouseID,
		Quantity:     in.Quantity,
		Price:        in.Price,
		MovementDate: movementDate,
		UserID:       userID,
	}

	var out *dto.MovementResponse
	var err error
	switch in.Type {
	case entity.MovementTypeInflow:
		mov, e := h.ledger.RecordInflow(c.Context(), input)
		err = e
		if e == nil {
			out = usecase.ToMovementResponse(mov, nil)
		}
	case entity.MovementTypeOutflow:
		res, e := h.ledger.RecordOutflow(c.Context(), input)
		err = e
		if e == nil {
			consumed := make([]dto.LotConsumptionDTO, 0, len(res.Consumed))
			for _, lc := range res.Consumed {
				consumed = append(consumed, dto.LotConsumptionDTO{MovementID: lc.MovementID, Quantity: lc.Quantity})
			}
			out = usecase.ToMovementResponse(res.Movement, consumed)
		}
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "type debe ser inflow u outflow"})
	}

	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"})
		}
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "ítem o bodega no encontrado"})
		}
		if errors.Is(err, domain.ErrInsufficientStock) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: "stock insuficiente"})
		}
		if errors.Is(err, domain.ErrConflict) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: "conflicto de concurrencia, reintente"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Listar movimientos
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        item_id       query  string  false  "Filtrar por ítem"
// @Param        warehouse_id  query  string  false  "Filtrar por bodega"
// @Param        type          query  string  false  "inflow u outflow"
// @Param        from          query  string  false  "Fecha desde (RFC 3339)"
// @Param        to            query  string  false  "Fecha hasta (RFC 3339)"
// @Param        limit         query  int     false  "Límite"   default(20)
// @Param        offset        query  int     false  "Offset"   default(0)
// @Success      200           {object}  dto.MovementListResponse
// @Router       /api/stock/movements [get]
func (h *MovementHandler) List(c *fiber.Ctx) error {
	limit, offset := pageParams(c)
	filter := repository.MovementFilter{
		ItemID:      c.Query("item_id"),
		WarehouseID: c.Query("warehouse_id"),
		Type:        c.Query("type"),
		Limit:       limit,
		Offset:      offset,
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "from inválido (RFC 3339)"})
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "to inválido (RFC 3339)"})
		}
		filter.To = &t
	}
	out, err := h.queries.ListMovements(c.Context(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obtener movimiento por ID
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        id   path  int  true  "ID del movimiento"
// @Success      200  {object}  dto.MovementResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/movements/{id} [get]
func (h *MovementHandler) GetByID(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id inválido"})
	}
	out, err := h.queries.GetMovement(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if out == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "movimiento no encontrado"})
	}
	return c.JSON(out)
}

// Reconcile godoc
// @Summary      Reconciliar el agregado de un par (ítem, bodega)
// @Description  Recalcula la suma de cantidades restantes y la compara con el agregado.
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        item_id       query  string  true  "Ítem"
// @Param        warehouse_id  query  string  true  "Bodega"
// @Success      200  {object}  dto.ReconciliationResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/stock/reconcile [get]
func (h *MovementHandler) Reconcile(c *fiber.Ctx) error {
	itemID := c.Query("item_id")
	warehouseID := c.Query("warehouse_id")
	if itemID == "" || warehouseID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "item_id y warehouse_id son requeridos"})
	}
	level, err := h.ledger.Reconcile(c.Context(), itemID, warehouseID)
	if err != nil {
		if errors.Is(err, domain.ErrInvariantViolation) {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ReconciliationResponse{
				ItemID: itemID, WarehouseID: warehouseID, Consistent: false,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.ReconciliationResponse{
		ItemID: itemID, WarehouseID: warehouseID, StockLevel: level, Consistent: true,
	})
}
