package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the schema if it does not exist. The exclusion constraint
// on appointments is the storage-level backstop for the ledger invariant:
// even if the per-business lock is bypassed, Postgres rejects a second
// booking whose time range overlaps a non-cancelled one.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS btree_gist`,
		`CREATE TABLE IF NOT EXISTS businesses (
			id uuid PRIMARY KEY,
			name text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS services (
			id uuid PRIMARY KEY,
			business_id uuid NOT NULL REFERENCES businesses (id),
			name text NOT NULL,
			duration_minutes int NOT NULL CHECK (duration_minutes > 0),
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id uuid PRIMARY KEY,
			name text NOT NULL,
			email text,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS operating_windows (
			id bigserial PRIMARY KEY,
			business_id uuid NOT NULL REFERENCES businesses (id),
			weekday int NOT NULL CHECK (weekday BETWEEN 0 AND 6),
			open_minute int NOT NULL CHECK (open_minute >= 0),
			close_minute int NOT NULL CHECK (close_minute <= 1440 AND close_minute > open_minute)
		)`,
		`CREATE TABLE IF NOT EXISTS appointments (
			id uuid PRIMARY KEY,
			business_id uuid NOT NULL REFERENCES businesses (id),
			service_id uuid NOT NULL REFERENCES services (id),
			client_id uuid NOT NULL REFERENCES clients (id),
			start_time timestamptz NOT NULL,
			duration_minutes int NOT NULL CHECK (duration_minutes > 0),
			status text NOT NULL CHECK (status IN ('confirmed', 'completed', 'cancelled')),
			notes text NOT NULL DEFAULT '',
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now(),
			CONSTRAINT appointments_no_overlap EXCLUDE USING gist (
				business_id WITH =,
				tstzrange(start_time, start_time + make_interval(mins => duration_minutes)) WITH &&
			) WHERE (status <> 'cancelled')
		)`,
		`CREATE INDEX IF NOT EXISTS appointments_business_day
			ON appointments (business_id, start_time)`,
		`CREATE TABLE IF NOT EXISTS event_logs (
			id bigserial PRIMARY KEY,
			event_type text NOT NULL,
			appointment_id uuid,
			payload jsonb,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return nil
}
