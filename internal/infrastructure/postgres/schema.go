package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema DDL idempotente de la aplicación; se aplica al arranque.
const schema = `
CREATE TABLE IF NOT EXISTS categories (
    id         UUID PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS items (
    id          UUID PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category_id UUID NOT NULL REFERENCES categories (id),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_items_category ON items (category_id);

CREATE TABLE IF NOT EXISTS warehouses (
    id         UUID PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    location   TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS users (
    id            UUID PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'viewer',
    is_active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Ledger append-only: solo remaining_quantity muta, y solo hacia abajo.
-- El id BIGSERIAL da el orden de inserción usado como desempate FIFO.
CREATE TABLE IF NOT EXISTS stock_movements (
    id                 BIGSERIAL PRIMARY KEY,
    item_id            UUID NOT NULL REFERENCES items (id),
    warehouse_id       UUID NOT NULL REFERENCES warehouses (id),
    movement_type      TEXT NOT NULL CHECK (movement_type IN ('inflow', 'outflow')),
    quantity           BIGINT NOT NULL CHECK (quantity > 0),
    remaining_quantity BIGINT NOT NULL CHECK (remaining_quantity >= 0 AND remaining_quantity <= quantity),
    price              NUMERIC(20, 4) NOT NULL CHECK (price >= 0),
    movement_date      TIMESTAMPTZ NOT NULL,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_by         UUID
);
CREATE INDEX IF NOT EXISTS idx_movements_pair_fifo
    ON stock_movements (item_id, warehouse_id, movement_date, id)
    WHERE movement_type = 'inflow' AND remaining_quantity > 0;
CREATE INDEX IF NOT EXISTS idx_movements_pair_date ON stock_movements (item_id, warehouse_id, movement_date);

CREATE TABLE IF NOT EXISTS stock (
    item_id      UUID NOT NULL REFERENCES items (id),
    warehouse_id UUID NOT NULL REFERENCES warehouses (id),
    stock_level  BIGINT NOT NULL DEFAULT 0 CHECK (stock_level >= 0),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (item_id, warehouse_id)
);
`

// EnsureSchema aplica el DDL idempotente. Pensado para desarrollo y tests de
// integración; en producción el esquema se versiona fuera del proceso.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("aplicar esquema: %w", err)
	}
	return nil
}
