package usecase

import (
	"time"

	"github.com/google/uuid"
	"github.com/tu-usuario/warehouse-ledger/internal/application/dto"
	"github.com/tu-usuario/warehouse-ledger/internal/domain"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/entity"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/repository"
)

// ItemUseCase casos de uso CRUD para ítems del catálogo.
type ItemUseCase struct {
	repo         repository.ItemRepository
	categoryRepo repository.CategoryRepository
}

// NewItemUseCase construye el caso de uso.
func NewItemUseCase(repo repository.ItemRepository, categoryRepo repository.CategoryRepository) *ItemUseCase {
	return &ItemUseCase{repo: repo, categoryRepo: categoryRepo}
}

// Create crea un nuevo ítem. La categoría referenciada debe existir.
func (uc *ItemUseCase) Create(in dto.CreateItemRequest) (*dto.ItemResponse, error) {
	category, err := uc.categoryRepo.GetByID(in.CategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, domain.ErrNotFound
	}
	now := time.Now()
	item := &entity.Item{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.repo.Create(item); err != nil {
		return nil, err
	}
	return toItemResponse(item), nil
}

// GetByID obtiene un ítem por ID. Devuelve nil si no existe.
func (uc *ItemUseCase) GetByID(id string) (*dto.ItemResponse, error) {
	item, err := uc.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	return toItemResponse(item), nil
}

// Update actualiza los campos descriptivos de un ítem. Si cambia la categoría,
// la nueva debe existir.
func (uc *ItemUseCase) Update(id string, in dto.UpdateItemRequest) (*dto.ItemResponse, error) {
	item, err := uc.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	if in.CategoryID != nil {
		category, err := uc.categoryRepo.GetByID(*in.CategoryID)
		if err != nil {
			return nil, err
		}
		if category == nil {
			return nil, domain.ErrNotFound
		}
		item.CategoryID = *in.CategoryID
	}
	if in.Name != nil {
		item.Name = *in.Name
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	item.UpdatedAt = time.Now()
	if err := uc.repo.Update(item); err != nil {
		return nil, err
	}
	return toItemResponse(item), nil
}

// List lista ítems con paginación, opcionalmente filtrados por categoría.
func (uc *ItemUseCase) List(categoryID string, limit, offset int) (*dto.ItemListResponse, error) {
	var list []*entity.Item
	var err error
	if categoryID != "" {
		list, err = uc.repo.ListByCategory(categoryID, limit, offset)
	} else {
		list, err = uc.repo.List(limit, offset)
	}
	if err != nil {
		return nil, err
	}
	items := make([]dto.ItemResponse, 0, len(list))
	for _, it := range list {
		items = append(items, *toItemResponse(it))
	}
	return &dto.ItemListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset},
	}, nil
}

// Delete elimina un ítem por ID.
func (uc *ItemUseCase) Delete(id string) error {
	return uc.repo.Delete(id)
}

func toItemResponse(i *entity.Item) *dto.ItemResponse {
	if i == nil {
		return nil
	}
	return &dto.ItemResponse{
		ID:          i.ID,
		Name:        i.Name,
		Description: i.Description,
		CategoryID:  i.CategoryID,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}
