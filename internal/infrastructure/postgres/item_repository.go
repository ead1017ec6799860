package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/entity"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/repository"
)

var _ repository.ItemRepository = (*ItemRepo)(nil)

// ItemRepo implementación del puerto ItemRepository sobre PostgreSQL.
type ItemRepo struct {
	q Querier
}

// NewItemRepository construye el adaptador de persistencia para ítems.
func NewItemRepository(q Querier) *ItemRepo {
	return &ItemRepo{q: q}
}

// Create persiste un nuevo ítem.
func (r *ItemRepo) Create(item *entity.Item) error {
	query := `
		INSERT INTO items (id, name, description, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(context.Background(), query,
		item.ID, item.Name, item.Description, item.CategoryID,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// GetByID obtiene un ítem por ID. Devuelve nil si no existe.
func (r *ItemRepo) GetByID(id string) (*entity.Item, error) {
	query := `
		SELECT id, name, description, category_id, created_at, updated_at
		FROM items WHERE id = $1`
	var i entity.Item
	err := r.q.QueryRow(context.Background(), query, id).Scan(
		&i.ID, &i.Name, &i.Description, &i.CategoryID, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &i, nil
}

// List lista ítems con paginación.
func (r *ItemRepo) List(limit, offset int) ([]*entity.Item, error) {
	query := `
		SELECT id, name, description, category_id, created_at, updated_at
		FROM items ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(context.Background(), query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ListByCategory lista ítems de una categoría con paginación.
func (r *ItemRepo) ListByCategory(categoryID string, limit, offset int) ([]*entity.Item, error) {
	query := `
		SELECT id, name, description, category_id, created_at, updated_at
		FROM items WHERE category_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(context.Background(), query, categoryID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list items by category: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// Update actualiza un ítem existente.
func (r *ItemRepo) Update(item *entity.Item) error {
	query := `
		UPDATE items SET name = $2, description = $3, category_id = $4, updated_at = $5
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		item.ID, item.Name, item.Description, item.CategoryID, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// Delete elimina un ítem por ID.
func (r *ItemRepo) Delete(id string) error {
	_, err := r.q.Exec(context.Background(), `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func collectItems(rows pgx.Rows) ([]*entity.Item, error) {
	var list []*entity.Item
	for rows.Next() {
		var i entity.Item
		if err := rows.Scan(&i.ID, &i.Name, &i.Description, &i.CategoryID, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		list = append(list, &i)
	}
	return list, rows.Err()
}
