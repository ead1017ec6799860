package entity

import "time"

// Item representa un artículo almacenable; pertenece a exactamente una categoría.
// Una vez referenciado por movimientos solo cambian los campos descriptivos.
type Item struct {
	ID          string
	Name        string
	Description string
	CategoryID  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
