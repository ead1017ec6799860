package repository

import "github.com/tu-usuario/warehouse-ledger/internal/domain/entity"

// ItemRepository puerto de persistencia para ítems del catálogo.
type ItemRepository interface {
	Create(item *entity.Item) error
	GetByID(id string) (*entity.Item, error)
	List(limit, offset int) ([]*entity.Item, error)
	ListByCategory(categoryID string, limit, offset int) ([]*entity.Item, error)
	Update(item *entity.Item) error
	Delete(id string) error
}
