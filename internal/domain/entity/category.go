package entity

import "time"

// Category agrupa ítems del catálogo.
type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
