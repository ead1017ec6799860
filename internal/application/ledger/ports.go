package ledger

import (
	"context"

	"github.com/tu-usuario/warehouse-ledger/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios
// atados a esa tx. Garantiza atomicidad para el motor del ledger: si fn devuelve error
// se hace Rollback y ningún decremento parcial queda visible.
//
// Las implementaciones deben traducir los conflictos de serialización o deadlock del
// almacenamiento a domain.ErrConflict para que el servicio pueda reintentar.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		movRepo repository.StockMovementRepository,
		stockRepo repository.StockRepository,
	) error) error
}
