package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/warehouse-ledger/internal/domain"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/entity"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo agregado stock_level por (ítem, bodega) sobre PostgreSQL
// (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

// Get obtiene el nivel de stock del par. Si no hay fila devuelve un agregado en 0:
// la ausencia de fila nunca se filtra hacia arriba.
func (r *StockRepo) Get(ctx context.Context, itemID, warehouseID string) (*entity.Stock, error) {
	query := `
		SELECT item_id, warehouse_id, stock_level, updated_at
		FROM stock WHERE item_id = $1 AND warehouse_id = $2`
	var s entity.Stock
	err := r.q.QueryRow(ctx, query, itemID, warehouseID).Scan(
		&s.ItemID, &s.WarehouseID, &s.StockLevel, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.Stock{ItemID: itemID, WarehouseID: warehouseID, StockLevel: 0}, nil
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return &s, nil
}

// GetForUpdate obtiene el agregado bloqueando la fila (SELECT FOR UPDATE). La fila del
// par es la unidad de exclusión mutua del ledger: mientras una transacción la tenga,
// ninguna otra mutación del mismo par avanza. Devuelve nil si no existe fila (el par
// nunca tuvo entradas); pares distintos no contienden entre sí.
func (r *StockRepo) GetForUpdate(ctx context.Context, itemID, warehouseID string) (*entity.Stock, error) {
	query := `
		SELECT item_id, warehouse_id, stock_level, updated_at
		FROM stock WHERE item_id = $1 AND warehouse_id = $2
		FOR UPDATE`
	var s entity.Stock
	err := r.q.QueryRow(ctx, query, itemID, warehouseID).Scan(
		&s.ItemID, &s.WarehouseID, &s.StockLevel, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock for update: %w", err)
	}
	return &s, nil
}

// Increment suma `amount` al nivel del par, creando la fila si es la primera entrada.
func (r *StockRepo) Increment(ctx context.Context, itemID, warehouseID string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidInput
	}
	query := `
		INSERT INTO stock (item_id, warehouse_id, stock_level, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (item_id, warehouse_id)
		DO UPDATE SET stock_level = stock.stock_level + EXCLUDED.stock_level, updated_at = now()`
	if _, err := r.q.Exec(ctx, query, itemID, warehouseID, amount); err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	return nil
}

// Decrement resta `amount` del nivel del par. El WHERE garantiza no-negatividad:
// si dejaría el nivel por debajo de cero no se toca la fila y se devuelve
// domain.ErrInsufficientStock.
func (r *StockRepo) Decrement(ctx context.Context, itemID, warehouseID string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidInput
	}
	query := `
		UPDATE stock
		SET stock_level = stock_level - $3, updated_at = now()
		WHERE item_id = $1 AND warehouse_id = $2 AND stock_level >= $3`
	cmd, err := r.q.Exec(ctx, query, itemID, warehouseID, amount)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

// ListAll lista todos los agregados con paginación.
func (r *StockRepo) ListAll(ctx context.Context, limit, offset int) ([]*entity.Stock, error) {
	query := `
		SELECT item_id, warehouse_id, stock_level, updated_at
		FROM stock ORDER BY item_id, warehouse_id LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()
	return collectStock(rows)
}

// ListByItem lista el stock de un ítem en todas las bodegas.
func (r *StockRepo) ListByItem(ctx context.Context, itemID string) ([]*entity.Stock, error) {
	query := `
		SELECT item_id, warehouse_id, stock_level, updated_at
		FROM stock WHERE item_id = $1 ORDER BY warehouse_id`
	rows, err := r.q.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("list stock by item: %w", err)
	}
	defer rows.Close()
	return collectStock(rows)
}

// ListByWarehouse lista el stock de todos los ítems de una bodega.
func (r *StockRepo) ListByWarehouse(ctx context.Context, warehouseID string) ([]*entity.Stock, error) {
	query := `
		SELECT item_id, warehouse_id, stock_level, updated_at
		FROM stock WHERE warehouse_id = $1 ORDER BY item_id`
	rows, err := r.q.Query(ctx, query, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("list stock by warehouse: %w", err)
	}
	defer rows.Close()
	return collectStock(rows)
}

func collectStock(rows pgx.Rows) ([]*entity.Stock, error) {
	var list []*entity.Stock
	for rows.Next() {
		var s entity.Stock
		if err := rows.Scan(&s.ItemID, &s.WarehouseID, &s.StockLevel, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}
