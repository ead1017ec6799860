package repository

import "github.com/tu-usuario/warehouse-ledger/internal/domain/entity"

// CategoryRepository puerto de persistencia para categorías.
type CategoryRepository interface {
	Create(category *entity.Category) error
	GetByID(id string) (*entity.Category, error)
	List(limit, offset int) ([]*entity.Category, error)
	Update(category *entity.Category) error
	Delete(id string) error
}
