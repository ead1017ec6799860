package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/warehouse-ledger/internal/domain"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/entity"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/ledger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

var testBase = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// lot construye un lote de entrada con cantidad restante y fecha relativa en días.
func lot(id int64, remaining int64, dayOffset int) *entity.StockMovement {
	return &entity.StockMovement{
		ID:                id,
		Type:              entity.MovementTypeInflow,
		Quantity:          remaining,
		RemainingQuantity: remaining,
		MovementDate:      testBase.AddDate(0, 0, dayOffset),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Orden FIFO
// ──────────────────────────────────────────────────────────────────────────────

// El lote más antiguo se consume primero, aunque llegue desordenado en el slice.
func TestPlanOutflow_ConsumeElLoteMasAntiguoPrimero(t *testing.T) {
	lots := []*entity.StockMovement{
		lot(3, 50, 2), // día 3
		lot(1, 50, 0), // día 1 (el más antiguo)
		lot(2, 50, 1), // día 2
	}

	plan, err := ledger.PlanOutflow(lots, 60)
	require.NoError(t, err)

	require.Len(t, plan, 2, "60 unidades deben salir de dos lotes")
	assert.Equal(t, int64(1), plan[0].MovementID, "el lote del día 1 se consume primero")
	assert.Equal(t, int64(50), plan[0].Quantity, "el primer lote se agota completo")
	assert.Equal(t, int64(2), plan[1].MovementID, "el resto sale del lote del día 2")
	assert.Equal(t, int64(10), plan[1].Quantity)
	assert.Equal(t, int64(60), ledger.TotalPlanned(plan))
}

// Misma fecha: desempata el ID ascendente (orden de inserción).
func TestPlanOutflow_MismaFechaDesempataPorID(t *testing.T) {
	lots := []*entity.StockMovement{
		lot(7, 30, 0),
		lot(4, 30, 0),
		lot(9, 30, 0),
	}

	plan, err := ledger.PlanOutflow(lots, 70)
	require.NoError(t, err)

	require.Len(t, plan, 3)
	assert.Equal(t, int64(4), plan[0].MovementID)
	assert.Equal(t, int64(7), plan[1].MovementID)
	assert.Equal(t, int64(9), plan[2].MovementID)
	assert.Equal(t, int64(10), plan[2].Quantity, "el último lote solo aporta el resto")
}

// Una salida que cabe en el primer lote no toca los demás.
func TestPlanOutflow_SalidaParcialDeUnSoloLote(t *testing.T) {
	lots := []*entity.StockMovement{
		lot(1, 100, 0),
		lot(2, 100, 1),
	}

	plan, err := ledger.PlanOutflow(lots, 40)
	require.NoError(t, err)

	require.Len(t, plan, 1)
	assert.Equal(t, int64(1), plan[0].MovementID)
	assert.Equal(t, int64(40), plan[0].Quantity)
}

// Escenario de trazabilidad: entradas día 1 (100) y día 2 (50), salida de 120.
// Deben consumirse 100 del primer lote y 20 del segundo.
func TestPlanOutflow_EscenarioDosLotes(t *testing.T) {
	lots := []*entity.StockMovement{
		lot(1, 100, 0),
		lot(2, 50, 1),
	}

	plan, err := ledger.PlanOutflow(lots, 120)
	require.NoError(t, err)

	require.Len(t, plan, 2)
	assert.Equal(t, ledger.LotConsumption{MovementID: 1, Quantity: 100}, plan[0])
	assert.Equal(t, ledger.LotConsumption{MovementID: 2, Quantity: 20}, plan[1])
}

// La cantidad exacta disponible se puede sacar completa.
func TestPlanOutflow_ConsumoExactoDeTodoElStock(t *testing.T) {
	lots := []*entity.StockMovement{
		lot(1, 30, 0),
		lot(2, 20, 1),
	}

	plan, err := ledger.PlanOutflow(lots, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), ledger.TotalPlanned(plan))
}

// ──────────────────────────────────────────────────────────────────────────────
// Stock insuficiente: todo o nada
// ──────────────────────────────────────────────────────────────────────────────

func TestPlanOutflow_StockInsuficiente_SinPlanParcial(t *testing.T) {
	lots := []*entity.StockMovement{
		lot(1, 30, 0),
		lot(2, 20, 1),
	}

	plan, err := ledger.PlanOutflow(lots, 51)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock),
		"pedir más de lo disponible debe fallar con ErrInsufficientStock")
	assert.Nil(t, plan, "no debe devolverse ningún plan parcial")
}

func TestPlanOutflow_SinLotes_EsStockInsuficiente(t *testing.T) {
	plan, err := ledger.PlanOutflow(nil, 1)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	assert.Nil(t, plan)
}

// Lotes agotados (remaining 0) no aportan al plan.
func TestPlanOutflow_IgnoraLotesAgotados(t *testing.T) {
	agotado := lot(1, 10, 0)
	agotado.RemainingQuantity = 0
	lots := []*entity.StockMovement{
		agotado,
		lot(2, 25, 1),
	}

	plan, err := ledger.PlanOutflow(lots, 25)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, int64(2), plan[0].MovementID, "el lote agotado no debe aparecer en el plan")
}

// ──────────────────────────────────────────────────────────────────────────────
// Validación de la cantidad
// ──────────────────────────────────────────────────────────────────────────────

func TestPlanOutflow_CantidadCeroEsInvalida(t *testing.T) {
	_, err := ledger.PlanOutflow([]*entity.StockMovement{lot(1, 10, 0)}, 0)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestPlanOutflow_CantidadNegativaEsInvalida(t *testing.T) {
	_, err := ledger.PlanOutflow([]*entity.StockMovement{lot(1, 10, 0)}, -5)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

// PlanOutflow no debe mutar los lotes de entrada: el decremento real lo aplica
// la capa de persistencia dentro de la transacción.
func TestPlanOutflow_NoMutaLosLotes(t *testing.T) {
	l1 := lot(1, 100, 0)
	l2 := lot(2, 50, 1)

	_, err := ledger.PlanOutflow([]*entity.StockMovement{l1, l2}, 120)
	require.NoError(t, err)

	assert.Equal(t, int64(100), l1.RemainingQuantity)
	assert.Equal(t, int64(50), l2.RemainingQuantity)
}

// El orden del slice de entrada no cambia el resultado.
func TestPlanOutflow_Determinista_IndependienteDelOrdenDeEntrada(t *testing.T) {
	a := []*entity.StockMovement{lot(1, 10, 0), lot(2, 10, 1), lot(3, 10, 2)}
	b := []*entity.StockMovement{lot(3, 10, 2), lot(1, 10, 0), lot(2, 10, 1)}

	planA, errA := ledger.PlanOutflow(a, 25)
	planB, errB := ledger.PlanOutflow(b, 25)

	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, planA, planB, "el plan debe ser idéntico sin importar el orden de llegada")
}
