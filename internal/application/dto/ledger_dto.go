package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegisterMovementRequest body para POST /api/stock/movements.
// MovementDate en formato RFC 3339; si se omite se usa la fecha actual.
type RegisterMovementRequest struct {
	ItemID       string          `json:"item_id" validate:"required,uuid"`
	WarehouseID  string          `json:"warehouse_id" validate:"required,uuid"`
	Type         string          `json:"type" validate:"required,oneof=inflow outflow"`
	Quantity     int64           `json:"quantity" validate:"required,gt=0"`
	Price        decimal.Decimal `json:"price"`
	MovementDate *time.Time      `json:"movement_date,omitempty"`
}

// LotConsumptionDTO detalle de consumo de un lote en una salida FIFO.
type LotConsumptionDTO struct {
	MovementID int64 `json:"movement_id"`
	Quantity   int64 `json:"quantity"`
}

// MovementResponse salida de un movimiento persistido.
type MovementResponse struct {
	ID                int64               `json:"id"`
	ItemID            string              `json:"item_id"`
	WarehouseID       string              `json:"warehouse_id"`
	Type              string              `json:"type"`
	Quantity          int64               `json:"quantity"`
	RemainingQuantity int64               `json:"remaining_quantity"`
	Price             decimal.Decimal     `json:"price"`
	MovementDate      time.Time           `json:"movement_date"`
	CreatedAt         time.Time           `json:"created_at"`
	Consumed          []LotConsumptionDTO `json:"consumed,omitempty"`
}

// MovementListResponse listado paginado de movimientos.
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// StockResponse nivel de stock de un par (ítem, bodega).
type StockResponse struct {
	ItemID      string    `json:"item_id"`
	WarehouseID string    `json:"warehouse_id"`
	StockLevel  int64     `json:"stock_level"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ReconciliationResponse resultado de la reconciliación de un par.
type ReconciliationResponse struct {
	ItemID      string `json:"item_id"`
	WarehouseID string `json:"warehouse_id"`
	StockLevel  int64  `json:"stock_level"`
	Consistent  bool   `json:"consistent"`
}
