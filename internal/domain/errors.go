package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound              = errors.New("recurso no encontrado")
	ErrUserNotFound          = errors.New("usuario no encontrado")
	ErrUsernameAlreadyExists = errors.New("el nombre de usuario ya está registrado")
	ErrInvalidInput          = errors.New("entrada inválida")
	ErrDuplicate             = errors.New("recurso duplicado")
	ErrUnauthorized          = errors.New("no autorizado")
	ErrForbidden             = errors.New("acceso denegado")
	ErrConflict              = errors.New("conflicto de concurrencia, reintentar")
	ErrInsufficientStock     = errors.New("stock insuficiente")
	ErrInvariantViolation    = errors.New("violación de invariante del ledger")
	ErrWarehouseHasStock     = errors.New("la bodega tiene stock y no puede eliminarse")
)
