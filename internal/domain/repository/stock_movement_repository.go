package repository

import (
	"context"
	"time"

	"github.com/tu-usuario/warehouse-ledger/internal/domain/entity"
)

// MovementFilter filtros para listar movimientos.
type MovementFilter struct {
	ItemID      string
	WarehouseID string
	Type        string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// StockMovementRepository es el almacén de lotes y el registro append-only de movimientos.
//
// ListConsumableLots devuelve los lotes de entrada consumibles de un par
// (ítem, bodega): inflow con cantidad restante > 0 y fecha estrictamente anterior
// a asOf, ordenados por fecha ascendente con desempate por ID. Dentro de una
// transacción de asignación la implementación debe bloquear las filas devueltas.
//
// DecrementLot descuenta `amount` de la cantidad restante de un lote y falla con
// domain.ErrInvariantViolation si el lote no tiene esa cantidad disponible
// (protección contra lost updates que se cuelen al motor de asignación).
type StockMovementRepository interface {
	Create(ctx context.Context, movement *entity.StockMovement) error
	GetByID(ctx context.Context, id int64) (*entity.StockMovement, error)
	List(ctx context.Context, filter MovementFilter) ([]*entity.StockMovement, error)
	ListConsumableLots(ctx context.Context, itemID, warehouseID string, asOf time.Time) ([]*entity.StockMovement, error)
	DecrementLot(ctx context.Context, id int64, amount int64) error
	SumRemaining(ctx context.Context, itemID, warehouseID string) (int64, error)
}
