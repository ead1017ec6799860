package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/warehouse-ledger/internal/domain"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/entity"
	domledger "github.com/tu-usuario/warehouse-ledger/internal/domain/ledger"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/repository"
	"github.com/tu-usuario/warehouse-ledger/pkg/logger"
)

// maxRetries reintentos internos ante conflictos de concurrencia (domain.ErrConflict)
// antes de devolver el error al caller.
const maxRetries = 3

// Service orquesta las dos operaciones mutantes del ledger (entrada y salida) y
// mantiene consistentes el registro de movimientos, los lotes y el agregado de stock.
// Toda mutación sobre un par (ítem, bodega) ocurre dentro de una transacción que
// serializa con las demás mutaciones del mismo par vía el bloqueo de fila del agregado.
type Service struct {
	txRunner      TxRunner
	itemRepo      repository.ItemRepository
	warehouseRepo repository.WarehouseRepository
	movRepo       repository.StockMovementRepository
	stockRepo     repository.StockRepository
	log           *logger.Logger
}

// NewService construye el servicio del ledger. movRepo y stockRepo se usan solo para
// lecturas fuera de transacción (reconciliación); las mutaciones pasan por txRunner.
func NewService(
	txRunner TxRunner,
	itemRepo repository.ItemRepository,
	warehouseRepo repository.WarehouseRepository,
	movRepo repository.StockMovementRepository,
	stockRepo repository.StockRepository,
	log *logger.Logger,
) *Service {
	return &Service{
		txRunner:      txRunner,
		itemRepo:      itemRepo,
		warehouseRepo: warehouseRepo,
		movRepo:       movRepo,
		stockRepo:     stockRepo,
		log:           log,
	}
}

// MovementInput entrada para registrar un movimiento (entrada o salida).
type MovementInput struct {
	ItemID       string
	WarehouseID  string
	Quantity     int64
	Price        decimal.Decimal
	MovementDate time.Time
	UserID       string
}

// OutflowResult resultado de una salida: el movimiento persistido más el detalle de
// qué lotes se consumieron y en qué cantidad (trazabilidad FIFO).
type OutflowResult struct {
	Movement *entity.StockMovement
	Consumed []domledger.LotConsumption
}

func (s *Service) validate(input MovementInput) error {
	if input.ItemID == "" || input.WarehouseID == "" {
		return domain.ErrInvalidInput
	}
	if input.Quantity <= 0 {
		return domain.ErrInvalidInput
	}
	if input.Price.IsNegative() {
		return domain.ErrInvalidInput
	}
	if input.MovementDate.IsZero() {
		return domain.ErrInvalidInput
	}
	return nil
}

// checkReferences verifica que el ítem y la bodega existan antes de mutar nada.
func (s *Service) checkReferences(input MovementInput) error {
	item, err := s.itemRepo.GetByID(input.ItemID)
	if err != nil {
		return err
	}
	if item == nil {
		return domain.ErrNotFound
	}
	warehouse, err := s.warehouseRepo.GetByID(input.WarehouseID)
	if err != nil {
		return err
	}
	if warehouse == nil {
		return domain.ErrNotFound
	}
	return nil
}

// RecordInflow registra una entrada: crea el lote (remaining_quantity = quantity) e
// incrementa el agregado en la misma transacción. O ambos cambios quedan, o ninguno.
func (s *Service) RecordInflow(ctx context.Context, input MovementInput) (*entity.StockMovement, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}
	if err := s.checkReferences(input); err != nil {
		return nil, err
	}

	movement := &entity.StockMovement{
		ItemID:            input.ItemID,
		WarehouseID:       input.WarehouseID,
		Type:              entity.MovementTypeInflow,
		Quantity:          input.Quantity,
		RemainingQuantity: input.Quantity,
		Price:             input.Price,
		MovementDate:      input.MovementDate,
		CreatedAt:         time.Now(),
		CreatedBy:         input.UserID,
	}

	err := s.runWithRetry(ctx, func(
		movRepo repository.StockMovementRepository,
		stockRepo repository.StockRepository,
	) error {
		if err := movRepo.Create(ctx, movement); err != nil {
			return err
		}
		return stockRepo.Increment(ctx, input.ItemID, input.WarehouseID, input.Quantity)
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// RecordOutflow registra una salida consumiendo lotes en orden FIFO.
//
// Dentro de una única transacción: bloquea la fila del agregado (unidad de exclusión
// del par), lista los lotes consumibles anteriores a la fecha de la salida, calcula el
// plan FIFO, aplica los decrementos lote a lote, descuenta el agregado y persiste el
// movimiento con remaining_quantity = 0. Si el stock no alcanza, la transacción
// completa se revierte y no se escribe ningún movimiento (sin salidas parciales).
func (s *Service) RecordOutflow(ctx context.Context, input MovementInput) (*OutflowResult, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}
	if err := s.checkReferences(input); err != nil {
		return nil, err
	}

	movement := &entity.StockMovement{
		ItemID:       input.ItemID,
		WarehouseID:  input.WarehouseID,
		Type:         entity.MovementTypeOutflow,
		Quantity:     input.Quantity,
		Price:        input.Price,
		MovementDate: input.MovementDate,
		CreatedAt:    time.Now(),
		CreatedBy:    input.UserID,
	}
	var consumed []domledger.LotConsumption

	err := s.runWithRetry(ctx, func(
		movRepo repository.StockMovementRepository,
		stockRepo repository.StockRepository,
	) error {
		// Serializa las mutaciones del par: sin fila de agregado no hubo entradas,
		// así que una salida es siempre stock insuficiente.
		stock, err := stockRepo.GetForUpdate(ctx, input.ItemID, input.WarehouseID)
		if err != nil {
			return err
		}
		if stock == nil || stock.StockLevel < input.Quantity {
			return domain.ErrInsufficientStock
		}

		lots, err := movRepo.ListConsumableLots(ctx, input.ItemID, input.WarehouseID, input.MovementDate)
		if err != nil {
			return err
		}
		plan, err := domledger.PlanOutflow(lots, input.Quantity)
		if err != nil {
			return err
		}
		for _, c := range plan {
			if err := movRepo.DecrementLot(ctx, c.MovementID, c.Quantity); err != nil {
				return err
			}
		}
		if err := stockRepo.Decrement(ctx, input.ItemID, input.WarehouseID, input.Quantity); err != nil {
			return err
		}
		if err := movRepo.Create(ctx, movement); err != nil {
			return err
		}
		consumed = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &OutflowResult{Movement: movement, Consumed: consumed}, nil
}

// Reconcile recalcula Σ remaining_quantity del par y lo compara con el agregado.
// Una divergencia es un bug: se registra y se devuelve domain.ErrInvariantViolation,
// nunca se corrige en silencio. Devuelve el nivel verificado.
func (s *Service) Reconcile(ctx context.Context, itemID, warehouseID string) (int64, error) {
	stock, err := s.stockRepo.Get(ctx, itemID, warehouseID)
	if err != nil {
		return 0, err
	}
	sum, err := s.movRepo.SumRemaining(ctx, itemID, warehouseID)
	if err != nil {
		return 0, err
	}
	if stock.StockLevel != sum {
		s.log.Error().
			Str("item_id", itemID).
			Str("warehouse_id", warehouseID).
			Int64("stock_level", stock.StockLevel).
			Int64("sum_remaining", sum).
			Msg("agregado de stock divergente de la suma de lotes")
		return 0, domain.ErrInvariantViolation
	}
	return sum, nil
}

// runWithRetry ejecuta fn en transacción y reintenta ante domain.ErrConflict
// (conflicto de serialización o deadlock traducido por el TxRunner).
// domain.ErrInvariantViolation nunca se reintenta.
func (s *Service) runWithRetry(ctx context.Context, fn func(
	movRepo repository.StockMovementRepository,
	stockRepo repository.StockRepository,
) error) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = s.txRunner.Run(ctx, fn)
		if err == nil || !errors.Is(err, domain.ErrConflict) {
			return err
		}
		s.log.Warn().
			Int("attempt", attempt).
			Err(err).
			Msg("conflicto de concurrencia en el ledger, reintentando")
	}
	return err
}
