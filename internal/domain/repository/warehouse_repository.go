package repository

import "github.com/tu-usuario/warehouse-ledger/internal/domain/entity"

// WarehouseRepository puerto de persistencia para bodegas.
type WarehouseRepository interface {
	Create(warehouse *entity.Warehouse) error
	GetByID(id string) (*entity.Warehouse, error)
	GetByName(name string) (*entity.Warehouse, error)
	List(limit, offset int) ([]*entity.Warehouse, error)
	Update(warehouse *entity.Warehouse) error
	Delete(id string) error
}
