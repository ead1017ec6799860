package repository

import (
	"context"

	"github.com/tu-usuario/warehouse-ledger/internal/domain/entity"
)

// StockRepository mantiene el agregado stock_level por (ítem, bodega).
//
// Get devuelve un agregado con nivel 0 cuando no existe fila (nunca nil hacia arriba).
// GetForUpdate bloquea la fila del par (SELECT FOR UPDATE): es la unidad de
// serialización de las operaciones mutantes del ledger; devuelve nil si no hay fila.
// Decrement falla con domain.ErrInsufficientStock si dejaría el nivel negativo.
type StockRepository interface {
	Get(ctx context.Context, itemID, warehouseID string) (*entity.Stock, error)
	GetForUpdate(ctx context.Context, itemID, warehouseID string) (*entity.Stock, error)
	Increment(ctx context.Context, itemID, warehouseID string, amount int64) error
	Decrement(ctx context.Context, itemID, warehouseID string, amount int64) error
	ListAll(ctx context.Context, limit, offset int) ([]*entity.Stock, error)
	ListByItem(ctx context.Context, itemID string) ([]*entity.Stock, error)
	ListByWarehouse(ctx context.Context, warehouseID string) ([]*entity.Stock, error)
}
