package entity

import "time"

// Warehouse representa una bodega donde se almacena inventario.
// El nombre es único en el sistema.
type Warehouse struct {
	ID        string
	Name      string
	Location  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
