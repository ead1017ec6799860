package entity

import "time"

// Roles de usuario.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleViewer  = "viewer"
)

// User representa un usuario del sistema con su rol para RBAC.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string // admin | manager | viewer
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
