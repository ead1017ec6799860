package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento de stock.
const (
	MovementTypeInflow  = "inflow"  // entrada: crea un lote con cantidad restante
	MovementTypeOutflow = "outflow" // salida: consume lotes en orden FIFO
)

// StockMovement es la entrada fundamental del ledger: un movimiento inmutable
// de entrada o salida sobre un par (ítem, bodega).
//
// El ID lo asigna la secuencia BIGSERIAL de la tabla; el orden de IDs coincide
// con el orden de inserción, lo que hace determinista el desempate FIFO cuando
// dos movimientos comparten fecha.
//
// Solo RemainingQuantity muta después de creado, y únicamente hacia abajo:
// las salidas van consumiendo la cantidad restante de los lotes de entrada.
// En un outflow RemainingQuantity es siempre 0.
type StockMovement struct {
	ID                int64
	ItemID            string
	WarehouseID       string
	Type              string // inflow | outflow
	Quantity          int64  // siempre positiva
	RemainingQuantity int64  // 0 <= RemainingQuantity <= Quantity; solo inflow
	Price             decimal.Decimal
	MovementDate      time.Time
	CreatedAt         time.Time
	CreatedBy         string // UserID
}

// IsLot indica si el movimiento es un lote de entrada con cantidad disponible.
func (m *StockMovement) IsLot() bool {
	return m.Type == MovementTypeInflow && m.RemainingQuantity > 0
}

// FullyConsumed indica si un lote de entrada fue agotado por salidas posteriores.
func (m *StockMovement) FullyConsumed() bool {
	return m.Type == MovementTypeInflow && m.RemainingQuantity == 0
}
