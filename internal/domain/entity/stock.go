package entity

import "time"

// Stock es el agregado materializado de stock por (ítem, bodega).
// Invariante: StockLevel == Σ RemainingQuantity de los inflow del par.
// Se crea de forma perezosa con la primera entrada y nunca es negativo.
type Stock struct {
	ItemID      string
	WarehouseID string
	StockLevel  int64
	UpdatedAt   time.Time
}
