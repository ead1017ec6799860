package ledger

import (
	"sort"

	"github.com/tu-usuario/warehouse-ledger/internal/domain"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/entity"
)

// LotConsumption indica cuánto se consume de un lote concreto al resolver una salida.
type LotConsumption struct {
	MovementID int64
	Quantity   int64
}

// PlanOutflow calcula el plan de consumo FIFO para una salida de `requested` unidades
// sobre los lotes dados. No muta los lotes: devuelve la lista (lote, cantidad) a aplicar.
//
// Los lotes deben venir ya filtrados (inflow, cantidad restante > 0, fecha anterior a la
// salida); aquí se reordenan por fecha ascendente con desempate por ID para que el
// resultado sea reproducible sin depender del orden de llegada.
//
// Errores:
//   - domain.ErrInvalidInput si requested <= 0.
//   - domain.ErrInsufficientStock si los lotes no cubren la cantidad completa;
//     en ese caso no se devuelve ningún plan parcial.
func PlanOutflow(lots []*entity.StockMovement, requested int64) ([]LotConsumption, error) {
	if requested <= 0 {
		return nil, domain.ErrInvalidInput
	}

	ordered := make([]*entity.StockMovement, len(lots))
	copy(ordered, lots)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].MovementDate.Equal(ordered[j].MovementDate) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].MovementDate.Before(ordered[j].MovementDate)
	})

	var plan []LotConsumption
	remaining := requested
	for _, lot := range ordered {
		if remaining == 0 {
			break
		}
		if !lot.IsLot() {
			continue
		}
		take := lot.RemainingQuantity
		if take > remaining {
			take = remaining
		}
		plan = append(plan, LotConsumption{MovementID: lot.ID, Quantity: take})
		remaining -= take
	}
	if remaining > 0 {
		return nil, domain.ErrInsufficientStock
	}
	return plan, nil
}

// TotalPlanned suma las cantidades de un plan de consumo.
func TotalPlanned(plan []LotConsumption) int64 {
	var total int64
	for _, c := range plan {
		total += c.Quantity
	}
	return total
}
