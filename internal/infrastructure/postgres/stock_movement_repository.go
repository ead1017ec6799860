package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/warehouse-ledger/internal/domain"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/entity"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

// StockMovementRepo implementación del ledger de movimientos sobre PostgreSQL
// (usable con pool o tx).
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

const movementColumns = `id, item_id, warehouse_id, movement_type, quantity, remaining_quantity, price, movement_date, created_at, created_by`

// Create persiste un movimiento. El ID lo asigna la secuencia de la tabla y se
// escribe de vuelta en la entidad; el orden de IDs es el orden de inserción.
func (r *StockMovementRepo) Create(ctx context.Context, movement *entity.StockMovement) error {
	query := `
		INSERT INTO stock_movements (item_id, warehouse_id, movement_type, quantity, remaining_quantity, price, movement_date, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	createdBy := (*string)(nil)
	if movement.CreatedBy != "" {
		createdBy = &movement.CreatedBy
	}
	err := r.q.QueryRow(ctx, query,
		movement.ItemID, movement.WarehouseID, movement.Type,
		movement.Quantity, movement.RemainingQuantity, movement.Price,
		movement.MovementDate, movement.CreatedAt, createdBy,
	).Scan(&movement.ID)
	if err != nil {
		return fmt.Errorf("create stock movement: %w", err)
	}
	return nil
}

// GetByID obtiene un movimiento por ID. Devuelve nil si no existe.
func (r *StockMovementRepo) GetByID(ctx context.Context, id int64) (*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE id = $1`
	m, err := scanMovement(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return m, nil
}

// List lista movimientos según los filtros; el orden es fecha descendente
// (los más recientes primero) con desempate por ID descendente.
func (r *StockMovementRepo) List(ctx context.Context, filter repository.MovementFilter) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE 1=1`
	var args []any
	pos := 1
	if filter.ItemID != "" {
		query += fmt.Sprintf(" AND item_id = $%d", pos)
		args = append(args, filter.ItemID)
		pos++
	}
	if filter.WarehouseID != "" {
		query += fmt.Sprintf(" AND warehouse_id = $%d", pos)
		args = append(args, filter.WarehouseID)
		pos++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND movement_type = $%d", pos)
		args = append(args, filter.Type)
		pos++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND movement_date >= $%d", pos)
		args = append(args, *filter.From)
		pos++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND movement_date <= $%d", pos)
		args = append(args, *filter.To)
		pos++
	}
	query += fmt.Sprintf(" ORDER BY movement_date DESC, id DESC LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()
	return collectMovements(rows)
}

// ListConsumableLots devuelve los lotes consumibles del par: inflow con cantidad
// restante y fecha estrictamente anterior a asOf, en orden FIFO (fecha ascendente,
// desempate por ID). FOR UPDATE bloquea las filas dentro de la transacción de
// asignación para que dos salidas concurrentes no consuman el mismo lote dos veces.
func (r *StockMovementRepo) ListConsumableLots(ctx context.Context, itemID, warehouseID string, asOf time.Time) ([]*entity.StockMovement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM stock_movements
		WHERE item_id = $1 AND warehouse_id = $2
		  AND movement_type = 'inflow'
		  AND remaining_quantity > 0
		  AND movement_date < $3
		ORDER BY movement_date ASC, id ASC
		FOR UPDATE`
	rows, err := r.q.Query(ctx, query, itemID, warehouseID, asOf)
	if err != nil {
		return nil, fmt.Errorf("list consumable lots: %w", err)
	}
	defer rows.Close()
	return collectMovements(rows)
}

// DecrementLot descuenta `amount` de la cantidad restante de un lote. El WHERE
// protege contra lost updates: si el lote no tiene esa cantidad disponible no se
// toca ninguna fila y se devuelve domain.ErrInvariantViolation.
func (r *StockMovementRepo) DecrementLot(ctx context.Context, id int64, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidInput
	}
	query := `
		UPDATE stock_movements
		SET remaining_quantity = remaining_quantity - $2
		WHERE id = $1 AND movement_type = 'inflow' AND remaining_quantity >= $2`
	cmd, err := r.q.Exec(ctx, query, id, amount)
	if err != nil {
		return fmt.Errorf("decrement lot %d: %w", id, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: lote %d sin cantidad suficiente para decrementar %d", domain.ErrInvariantViolation, id, amount)
	}
	return nil
}

// SumRemaining suma la cantidad restante de todos los lotes de entrada del par
// (base de la reconciliación del agregado).
func (r *StockMovementRepo) SumRemaining(ctx context.Context, itemID, warehouseID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(remaining_quantity), 0)
		FROM stock_movements
		WHERE item_id = $1 AND warehouse_id = $2 AND movement_type = 'inflow'`
	var sum int64
	if err := r.q.QueryRow(ctx, query, itemID, warehouseID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum remaining: %w", err)
	}
	return sum, nil
}

func scanMovement(row pgx.Row) (*entity.StockMovement, error) {
	var m entity.StockMovement
	var createdBy *string
	err := row.Scan(&m.ID, &m.ItemID, &m.WarehouseID, &m.Type,
		&m.Quantity, &m.RemainingQuantity, &m.Price, &m.MovementDate, &m.CreatedAt, &createdBy)
	if err != nil {
		return nil, err
	}
	if createdBy != nil {
		m.CreatedBy = *createdBy
	}
	return &m, nil
}

func collectMovements(rows pgx.Rows) ([]*entity.StockMovement, error) {
	var list []*entity.StockMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
