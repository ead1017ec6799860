package usecase

import (
	"context"

	"github.com/tu-usuario/warehouse-ledger/internal/application/dto"
	"github.com/tu-usuario/warehouse-ledger/internal/domain"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/entity"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/repository"
)

// StockQueryUseCase consultas de solo lectura sobre stock y movimientos.
// No bloquea escritores: lee con el aislamiento de la transacción implícita.
type StockQueryUseCase struct {
	stockRepo     repository.StockRepository
	movRepo       repository.StockMovementRepository
	itemRepo      repository.ItemRepository
	warehouseRepo repository.WarehouseRepository
}

// NewStockQueryUseCase construye el caso de uso.
func NewStockQueryUseCase(
	stockRepo repository.StockRepository,
	movRepo repository.StockMovementRepository,
	itemRepo repository.ItemRepository,
	warehouseRepo repository.WarehouseRepository,
) *StockQueryUseCase {
	return &StockQueryUseCase{
		stockRepo:     stockRepo,
		movRepo:       movRepo,
		itemRepo:      itemRepo,
		warehouseRepo: warehouseRepo,
	}
}

// GetLevel devuelve el nivel de stock de un par (ítem, bodega); 0 si nunca hubo entradas.
func (uc *StockQueryUseCase) GetLevel(ctx context.Context, itemID, warehouseID string) (*dto.StockResponse, error) {
	stock, err := uc.stockRepo.Get(ctx, itemID, warehouseID)
	if err != nil {
		return nil, err
	}
	return toStockResponse(stock), nil
}

// ListAll lista todos los agregados de stock con paginación.
func (uc *StockQueryUseCase) ListAll(ctx context.Context, limit, offset int) ([]dto.StockResponse, error) {
	list, err := uc.stockRepo.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return toStockResponses(list), nil
}

// ListByItem lista el stock de un ítem en todas las bodegas.
// Devuelve ErrNotFound si el ítem no existe.
func (uc *StockQueryUseCase) ListByItem(ctx context.Context, itemID string) ([]dto.StockResponse, error) {
	item, err := uc.itemRepo.GetByID(itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	list, err := uc.stockRepo.ListByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return toStockResponses(list), nil
}

// ListByWarehouse lista el stock de todos los ítems de una bodega.
// Devuelve ErrNotFound si la bodega no existe.
func (uc *StockQueryUseCase) ListByWarehouse(ctx context.Context, warehouseID string) ([]dto.StockResponse, error) {
	warehouse, err := uc.warehouseRepo.GetByID(warehouseID)
	if err != nil {
		return nil, err
	}
	if warehouse == nil {
		return nil, domain.ErrNotFound
	}
	list, err := uc.stockRepo.ListByWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	return toStockResponses(list), nil
}

// ListMovements lista movimientos con filtros de ítem, bodega, tipo y rango de fechas.
func (uc *StockQueryUseCase) ListMovements(ctx context.Context, filter repository.MovementFilter) (*dto.MovementListResponse, error) {
	list, err := uc.movRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.MovementResponse, 0, len(list))
	for _, m := range list {
		items = append(items, *ToMovementResponse(m, nil))
	}
	return &dto.MovementListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: filter.Limit, Offset: filter.Offset},
	}, nil
}

// GetMovement obtiene un movimiento por ID. Devuelve nil si no existe.
func (uc *StockQueryUseCase) GetMovement(ctx context.Context, id int64) (*dto.MovementResponse, error) {
	m, err := uc.movRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	return ToMovementResponse(m, nil), nil
}

// ToMovementResponse convierte un movimiento en su DTO, con el detalle de consumo
// FIFO cuando se trata de una salida recién registrada.
func ToMovementResponse(m *entity.StockMovement, consumed []dto.LotConsumptionDTO) *dto.MovementResponse {
	if m == nil {
		return nil
	}
	return &dto.MovementResponse{
		ID:                m.ID,
		ItemID:            m.ItemID,
		WarehouseID:       m.WarehouseID,
		Type:              m.Type,
		Quantity:          m.Quantity,
		RemainingQuantity: m.RemainingQuantity,
		Price:             m.Price,
		MovementDate:      m.MovementDate,
		CreatedAt:         m.CreatedAt,
		Consumed:          consumed,
	}
}

func toStockResponse(s *entity.Stock) *dto.StockResponse {
	if s == nil {
		return nil
	}
	return &dto.StockResponse{
		ItemID:      s.ItemID,
		WarehouseID: s.WarehouseID,
		StockLevel:  s.StockLevel,
		UpdatedAt:   s.UpdatedAt,
	}
}

func toStockResponses(list []*entity.Stock) []dto.StockResponse {
	out := make([]dto.StockResponse, 0, len(list))
	for _, s := range list {
		out = append(out, *toStockResponse(s))
	}
	return out
}
