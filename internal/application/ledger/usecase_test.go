package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appledger "github.com/tu-usuario/warehouse-ledger/internal/application/ledger"
	"github.com/tu-usuario/warehouse-ledger/internal/domain"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/entity"
	"github.com/tu-usuario/warehouse-ledger/internal/domain/repository"
	"github.com/tu-usuario/warehouse-ledger/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Store en memoria
//
// Emula la semántica que el servicio espera de PostgreSQL:
//   - transacciones todo-o-nada (snapshot + restore en caso de error)
//   - serialización de las mutaciones (un mutex de transacción en lugar del
//     bloqueo de fila del agregado)
//   - DecrementLot y Decrement protegidos contra cantidades insuficientes
// ──────────────────────────────────────────────────────────────────────────────

type pairKey struct{ itemID, warehouseID string }

type memStore struct {
	mu        sync.Mutex
	txMu      sync.Mutex
	nextID    int64
	movements []*entity.StockMovement
	stock     map[pairKey]int64
}

func newMemStore() *memStore {
	return &memStore{stock: make(map[pairKey]int64)}
}

func cloneMovement(m *entity.StockMovement) *entity.StockMovement {
	c := *m
	return &c
}

func (s *memStore) snapshot() ([]*entity.StockMovement, map[pairKey]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	movs := make([]*entity.StockMovement, len(s.movements))
	for i, m := range s.movements {
		movs[i] = cloneMovement(m)
	}
	stock := make(map[pairKey]int64, len(s.stock))
	for k, v := range s.stock {
		stock[k] = v
	}
	return movs, stock
}

func (s *memStore) restore(movs []*entity.StockMovement, stock map[pairKey]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movements = movs
	s.stock = stock
}

// memMovementRepo implementa repository.StockMovementRepository sobre el store.
type memMovementRepo struct{ store *memStore }

func (r *memMovementRepo) Create(_ context.Context, movement *entity.StockMovement) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.nextID++
	movement.ID = r.store.nextID
	r.store.movements = append(r.store.movements, cloneMovement(movement))
	return nil
}

func (r *memMovementRepo) GetByID(_ context.Context, id int64) (*entity.StockMovement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.movements {
		if m.ID == id {
			return cloneMovement(m), nil
		}
	}
	return nil, nil
}

func (r *memMovementRepo) List(_ context.Context, filter repository.MovementFilter) ([]*entity.StockMovement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.StockMovement
	for _, m := range r.store.movements {
		if filter.ItemID != "" && m.ItemID != filter.ItemID {
			continue
		}
		if filter.WarehouseID != "" && m.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		out = append(out, cloneMovement(m))
	}
	return out, nil
}

func (r *memMovementRepo) ListConsumableLots(_ context.Context, itemID, warehouseID string, asOf time.Time) ([]*entity.StockMovement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.StockMovement
	for _, m := range r.store.movements {
		if m.ItemID != itemID || m.WarehouseID != warehouseID {
			continue
		}
		if !m.IsLot() {
			continue
		}
		if !m.MovementDate.Before(asOf) {
			continue
		}
		out = append(out, cloneMovement(m))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MovementDate.Equal(out[j].MovementDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].MovementDate.Before(out[j].MovementDate)
	})
	return out, nil
}

func (r *memMovementRepo) DecrementLot(_ context.Context, id int64, amount int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.movements {
		if m.ID == id {
			if m.RemainingQuantity < amount {
				return fmt.Errorf("decrementar lote %d: %w", id, domain.ErrInvariantViolation)
			}
			m.RemainingQuantity -= amount
			return nil
		}
	}
	return fmt.Errorf("decrementar lote %d: %w", id, domain.ErrInvariantViolation)
}

func (r *memMovementRepo) SumRemaining(_ context.Context, itemID, warehouseID string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var sum int64
	for _, m := range r.store.movements {
		if m.ItemID == itemID && m.WarehouseID == warehouseID && m.Type == entity.MovementTypeInflow {
			sum += m.RemainingQuantity
		}
	}
	return sum, nil
}

// memStockRepo implementa repository.StockRepository sobre el store.
type memStockRepo struct{ store *memStore }

func (r *memStockRepo) Get(_ context.Context, itemID, warehouseID string) (*entity.Stock, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return &entity.Stock{
		ItemID:      itemID,
		WarehouseID: warehouseID,
		StockLevel:  r.store.stock[pairKey{itemID, warehouseID}],
	}, nil
}

func (r *memStockRepo) GetForUpdate(_ context.Context, itemID, warehouseID string) (*entity.Stock, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	level, ok := r.store.stock[pairKey{itemID, warehouseID}]
	if !ok {
		return nil, nil
	}
	return &entity.Stock{ItemID: itemID, WarehouseID: warehouseID, StockLevel: level}, nil
}

func (r *memStockRepo) Increment(_ context.Context, itemID, warehouseID string, amount int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.stock[pairKey{itemID, warehouseID}] += amount
	return nil
}

func (r *memStockRepo) Decrement(_ context.Context, itemID, warehouseID string, amount int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := pairKey{itemID, warehouseID}
	if r.store.stock[key] < amount {
		return domain.ErrInsufficientStock
	}
	r.store.stock[key] -= amount
	return nil
}

func (r *memStockRepo) ListAll(_ context.Context, _, _ int) ([]*entity.Stock, error) {
	return nil, nil
}

func (r *memStockRepo) ListByItem(_ context.Context, _ string) ([]*entity.Stock, error) {
	return nil, nil
}

func (r *memStockRepo) ListByWarehouse(_ context.Context, _ string) ([]*entity.Stock, error) {
	return nil, nil
}

// memTxRunner serializa las transacciones y revierte el store si fn falla.
type memTxRunner struct{ store *memStore }

func (t *memTxRunner) Run(_ context.Context, fn func(
	movRepo repository.StockMovementRepository,
	stockRepo repository.StockRepository,
) error) error {
	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()

	movs, stock := t.store.snapshot()
	err := fn(&memMovementRepo{store: t.store}, &memStockRepo{store: t.store})
	if err != nil {
		t.store.restore(movs, stock)
		return err
	}
	return nil
}

// conflictTxRunner falla con ErrConflict las primeras n ejecuciones.
type conflictTxRunner struct {
	inner    *memTxRunner
	failures int
	attempts int
}

func (t *conflictTxRunner) Run(ctx context.Context, fn func(
	movRepo repository.StockMovementRepository,
	stockRepo repository.StockRepository,
) error) error {
	t.attempts++
	if t.attempts <= t.failures {
		return fmt.Errorf("%w: deadlock detectado", domain.ErrConflict)
	}
	return t.inner.Run(ctx, fn)
}

// Repos de catálogo: solo GetByID importa para el servicio del ledger.
type memItemRepo struct{ items map[string]*entity.Item }

func (r *memItemRepo) Create(*entity.Item) error { return nil }
func (r *memItemRepo) GetByID(id string) (*entity.Item, error) {
	return r.items[id], nil
}
func (r *memItemRepo) List(int, int) ([]*entity.Item, error) { return nil, nil }
func (r *memItemRepo) ListByCategory(string, int, int) ([]*entity.Item, error) { return nil, nil }
func (r *memItemRepo) Update(*entity.Item) error { return nil }
func (r *memItemRepo) Delete(string) error { return nil }

type memWarehouseRepo struct{ warehouses map[string]*entity.Warehouse }

func (r *memWarehouseRepo) Create(*entity.Warehouse) error { return nil }
func (r *memWarehouseRepo) GetByID(id string) (*entity.Warehouse, error) {
	return r.warehouses[id], nil
}
func (r *memWarehouseRepo) GetByName(string) (*entity.Warehouse, error) { return nil, nil }
func (r *memWarehouseRepo) List(int, int) ([]*entity.Warehouse, error) { return nil, nil }
func (r *memWarehouseRepo) Update(*entity.Warehouse) error { return nil }
func (r *memWarehouseRepo) Delete(string) error { return nil }

// ──────────────────────────────────────────────────────────────────────────────
// Fixture
// ──────────────────────────────────────────────────────────────────────────────

const (
	testItemID      = "11111111-1111-1111-1111-111111111111"
	testWarehouseID = "22222222-2222-2222-2222-222222222222"
	testUserID      = "33333333-3333-3333-3333-333333333333"
)

var day = func(n int) time.Time {
	return time.Date(2024, 3, n, 12, 0, 0, 0, time.UTC)
}

type fixture struct {
	store   *memStore
	service *appledger.Service
	movRepo *memMovementRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	movRepo := &memMovementRepo{store: store}
	stockRepo := &memStockRepo{store: store}
	svc := appledger.NewService(
		&memTxRunner{store: store},
		&memItemRepo{items: map[string]*entity.Item{testItemID: {ID: testItemID, Name: "Tornillo M8"}}},
		&memWarehouseRepo{warehouses: map[string]*entity.Warehouse{testWarehouseID: {ID: testWarehouseID, Name: "Bodega Norte"}}},
		movRepo,
		stockRepo,
		testLogger(),
	)
	return &fixture{store: store, service: svc, movRepo: movRepo}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "production", Level: "error"})
}

func input(qty int64, movementDay int) appledger.MovementInput {
	return appledger.MovementInput{
		ItemID:       testItemID,
		WarehouseID:  testWarehouseID,
		Quantity:     qty,
		Price:        decimal.NewFromFloat(12.50),
		MovementDate: day(movementDay),
		UserID:       testUserID,
	}
}

// assertConsistent verifica el invariante del par: agregado == Σ remaining.
func (f *fixture) assertConsistent(t *testing.T, expected int64) {
	t.Helper()
	level, err := f.service.Reconcile(context.Background(), testItemID, testWarehouseID)
	require.NoError(t, err, "el agregado y la suma de lotes deben coincidir")
	assert.Equal(t, expected, level)
}

// ──────────────────────────────────────────────────────────────────────────────
// Entradas
// ──────────────────────────────────────────────────────────────────────────────

func TestRecordInflow_CreaLoteEIncrementaAgregado(t *testing.T) {
	f := newFixture(t)

	mov, err := f.service.RecordInflow(context.Background(), input(100, 1))
	require.NoError(t, err)

	assert.Equal(t, int64(1), mov.ID, "el ID lo asigna la persistencia")
	assert.Equal(t, entity.MovementTypeInflow, mov.Type)
	assert.Equal(t, int64(100), mov.RemainingQuantity, "un lote nuevo nace con remaining = quantity")
	f.assertConsistent(t, 100)
}

func TestRecordInflow_EntradasSucesivasAcumulan(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.RecordInflow(context.Background(), input(100, 1))
	require.NoError(t, err)
	_, err = f.service.RecordInflow(context.Background(), input(50, 2))
	require.NoError(t, err)

	f.assertConsistent(t, 150)
}

func TestRecordInflow_ItemInexistente(t *testing.T) {
	f := newFixture(t)
	in := input(10, 1)
	in.ItemID = "99999999-9999-9999-9999-999999999999"

	_, err := f.service.RecordInflow(context.Background(), in)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	f.assertConsistent(t, 0)
}

func TestRecordInflow_ValidaEntrada(t *testing.T) {
	f := newFixture(t)

	casos := []struct {
		nombre string
		mutate func(*appledger.MovementInput)
	}{
		{"cantidad cero", func(in *appledger.MovementInput) { in.Quantity = 0 }},
		{"cantidad negativa", func(in *appledger.MovementInput) { in.Quantity = -5 }},
		{"precio negativo", func(in *appledger.MovementInput) { in.Price = decimal.NewFromInt(-1) }},
		{"sin item", func(in *appledger.MovementInput) { in.ItemID = "" }},
		{"sin bodega", func(in *appledger.MovementInput) { in.WarehouseID = "" }},
		{"sin fecha", func(in *appledger.MovementInput) { in.MovementDate = time.Time{} }},
	}
	for _, c := range casos {
		t.Run(c.nombre, func(t *testing.T) {
			in := input(10, 1)
			c.mutate(&in)
			_, err := f.service.RecordInflow(context.Background(), in)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Salidas FIFO
// ──────────────────────────────────────────────────────────────────────────────

// Entrada día 1 (100), entrada día 2 (50), salida día 3 (120):
// consume 100 del primer lote y 20 del segundo; quedan 30 en el segundo.
func TestRecordOutflow_ConsumeFIFOEntreLotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lote1, err := f.service.RecordInflow(ctx, input(100, 1))
	require.NoError(t, err)
	lote2, err := f.service.RecordInflow(ctx, input(50, 2))
	require.NoError(t, err)

	res, err := f.service.RecordOutflow(ctx, input(120, 3))
	require.NoError(t, err)

	require.Len(t, res.Consumed, 2)
	assert.Equal(t, lote1.ID, res.Consumed[0].MovementID)
	assert.Equal(t, int64(100), res.Consumed[0].Quantity)
	assert.Equal(t, lote2.ID, res.Consumed[1].MovementID)
	assert.Equal(t, int64(20), res.Consumed[1].Quantity)

	// El movimiento de salida queda con remaining 0 (no es un lote).
	assert.Equal(t, entity.MovementTypeOutflow, res.Movement.Type)
	assert.Equal(t, int64(0), res.Movement.RemainingQuantity)

	// Lote 1 agotado, lote 2 con 30 restantes.
	l1, err := f.movRepo.GetByID(ctx, lote1.ID)
	require.NoError(t, err)
	assert.True(t, l1.FullyConsumed())
	l2, err := f.movRepo.GetByID(ctx, lote2.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), l2.RemainingQuantity)

	f.assertConsistent(t, 30)

	// Pedir más de lo que queda falla y no toca el lote sobreviviente.
	_, err = f.service.RecordOutflow(ctx, input(31, 4))
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	l2, err = f.movRepo.GetByID(ctx, lote2.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), l2.RemainingQuantity)
	f.assertConsistent(t, 30)
}

// Una salida solo puede consumir lotes con fecha estrictamente anterior.
func TestRecordOutflow_NoConsumeLotesDeLaMismaFechaNiPosteriores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.RecordInflow(ctx, input(100, 5))
	require.NoError(t, err)

	// Salida fechada el mismo instante que la entrada: el lote no es elegible
	// aunque el agregado tenga saldo.
	_, err = f.service.RecordOutflow(ctx, input(10, 5))
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	f.assertConsistent(t, 100)
}

func TestRecordOutflow_StockInsuficiente_NoDejaRastro(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.RecordInflow(ctx, input(50, 1))
	require.NoError(t, err)

	_, err = f.service.RecordOutflow(ctx, input(51, 2))
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))

	// Sin salidas parciales: ni movimiento de salida ni lotes tocados.
	movs, err := f.movRepo.List(ctx, repository.MovementFilter{Type: entity.MovementTypeOutflow})
	require.NoError(t, err)
	assert.Empty(t, movs, "una salida rechazada no debe persistir ningún movimiento")
	f.assertConsistent(t, 50)
}

func TestRecordOutflow_SinEntradasPrevias(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.RecordOutflow(context.Background(), input(1, 1))
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock),
		"sin fila de agregado la salida es stock insuficiente")
}

func TestRecordOutflow_AgotaElStockExacto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.RecordInflow(ctx, input(30, 1))
	require.NoError(t, err)
	_, err = f.service.RecordInflow(ctx, input(20, 2))
	require.NoError(t, err)

	res, err := f.service.RecordOutflow(ctx, input(50, 3))
	require.NoError(t, err)
	require.Len(t, res.Consumed, 2)

	f.assertConsistent(t, 0)

	// Con el stock en cero, la siguiente salida falla.
	_, err = f.service.RecordOutflow(ctx, input(1, 4))
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
}

// Secuencia intercalada: las salidas sucesivas continúan el recorrido FIFO
// donde lo dejó la anterior.
func TestRecordOutflow_SalidasSucesivasContinuanElFIFO(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lote1, err := f.service.RecordInflow(ctx, input(40, 1))
	require.NoError(t, err)
	lote2, err := f.service.RecordInflow(ctx, input(40, 2))
	require.NoError(t, err)

	res1, err := f.service.RecordOutflow(ctx, input(30, 3))
	require.NoError(t, err)
	require.Len(t, res1.Consumed, 1)
	assert.Equal(t, lote1.ID, res1.Consumed[0].MovementID)

	// Quedan 10 en el lote 1: la segunda salida los toma primero.
	res2, err := f.service.RecordOutflow(ctx, input(25, 4))
	require.NoError(t, err)
	require.Len(t, res2.Consumed, 2)
	assert.Equal(t, lote1.ID, res2.Consumed[0].MovementID)
	assert.Equal(t, int64(10), res2.Consumed[0].Quantity)
	assert.Equal(t, lote2.ID, res2.Consumed[1].MovementID)
	assert.Equal(t, int64(15), res2.Consumed[1].Quantity)

	f.assertConsistent(t, 25)
}

// ──────────────────────────────────────────────────────────────────────────────
// Reintentos ante conflictos de serialización
// ──────────────────────────────────────────────────────────────────────────────

func TestRecordInflow_ReintentaTrasConflicto(t *testing.T) {
	store := newMemStore()
	runner := &conflictTxRunner{inner: &memTxRunner{store: store}, failures: 2}
	svc := appledger.NewService(
		runner,
		&memItemRepo{items: map[string]*entity.Item{testItemID: {ID: testItemID}}},
		&memWarehouseRepo{warehouses: map[string]*entity.Warehouse{testWarehouseID: {ID: testWarehouseID}}},
		&memMovementRepo{store: store},
		&memStockRepo{store: store},
		testLogger(),
	)

	_, err := svc.RecordInflow(context.Background(), input(10, 1))
	require.NoError(t, err, "dos conflictos seguidos caben dentro del presupuesto de reintentos")
	assert.Equal(t, 3, runner.attempts)
}

func TestRecordInflow_AgotaReintentos(t *testing.T) {
	store := newMemStore()
	runner := &conflictTxRunner{inner: &memTxRunner{store: store}, failures: 10}
	svc := appledger.NewService(
		runner,
		&memItemRepo{items: map[string]*entity.Item{testItemID: {ID: testItemID}}},
		&memWarehouseRepo{warehouses: map[string]*entity.Warehouse{testWarehouseID: {ID: testWarehouseID}}},
		&memMovementRepo{store: store},
		&memStockRepo{store: store},
		testLogger(),
	)

	_, err := svc.RecordInflow(context.Background(), input(10, 1))
	assert.True(t, errors.Is(err, domain.ErrConflict),
		"agotados los reintentos debe propagarse el conflicto")
	assert.Equal(t, 3, runner.attempts, "tres intentos y no más")
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrencia: sobreventa imposible
// ──────────────────────────────────────────────────────────────────────────────

// 20 goroutines compiten por sacar 10 unidades cada una de un stock de 50.
// Exactamente 5 deben lograrlo; el resto recibe stock insuficiente, y el
// invariante del par queda intacto.
func TestRecordOutflow_ConcurrenciaSinSobreventa(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.RecordInflow(ctx, input(50, 1))
	require.NoError(t, err)

	const goroutines = 20
	var wg sync.WaitGroup
	results := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.RecordOutflow(ctx, input(10, 2))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, insufficient int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("error inesperado: %v", err)
		}
	}
	assert.Equal(t, 5, ok, "solo caben 5 salidas de 10 en un stock de 50")
	assert.Equal(t, goroutines-5, insufficient)

	f.assertConsistent(t, 0)
}

// ──────────────────────────────────────────────────────────────────────────────
// Reconciliación
// ──────────────────────────────────────────────────────────────────────────────

func TestReconcile_DetectaDivergenciaDelAgregado(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.RecordInflow(ctx, input(100, 1))
	require.NoError(t, err)

	// Corrupción simulada: el agregado se desvía de la suma de lotes.
	f.store.mu.Lock()
	f.store.stock[pairKey{testItemID, testWarehouseID}] = 90
	f.store.mu.Unlock()

	_, err = f.service.Reconcile(ctx, testItemID, testWarehouseID)
	assert.True(t, errors.Is(err, domain.ErrInvariantViolation),
		"una divergencia nunca se corrige en silencio")
}

func TestReconcile_ParSinMovimientosEsConsistenteEnCero(t *testing.T) {
	f := newFixture(t)

	level, err := f.service.Reconcile(context.Background(), testItemID, testWarehouseID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), level)
}
