package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the single declarative definition of the metadata store.
// The key primary key and the (lower(city), date) unique index are the
// authoritative idempotency guards for concurrent workers; application
// level check-then-insert is an optimization on top of them.
const schema = `
CREATE TABLE IF NOT EXISTS captures (
    key          TEXT PRIMARY KEY,
    city         TEXT NOT NULL,
    country_code TEXT,
    device_id    TEXT,
    captured_at  TIMESTAMPTZ NOT NULL,
    temperature  DOUBLE PRECISION,
    humidity     DOUBLE PRECISION,
    pressure     DOUBLE PRECISION,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS captures_city_captured_at_idx
    ON captures (city, captured_at);

CREATE TABLE IF NOT EXISTS daily_renders (
    id         BIGSERIAL PRIMARY KEY,
    city       TEXT NOT NULL,
    date       DATE NOT NULL,
    video_key  TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- Lookups match city case-insensitively, so the uniqueness guard must
-- too: "Vienna" and "vienna" are one logical city.
CREATE UNIQUE INDEX IF NOT EXISTS daily_renders_city_date_idx
    ON daily_renders (lower(city), date);
`

const schemaTimeout = 10 * time.Second

// ApplySchema provisions the metadata tables. It runs once at process
// start, never on the request path.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, schemaTimeout)
	defer cancel()

	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
