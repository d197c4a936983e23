// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/coursepay/internal/logging"
)

// Migration is one append-only schema change.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
	AppliedAt   time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	applied_at TIMESTAMP NOT NULL DEFAULT current_timestamp
);`

// migrations must never be edited or reordered once released.
var migrations = []Migration{
	{
		Version:     1,
		Name:        "create_orders",
		Description: "Order ledger keyed by id with a unique gateway reference",
		SQL: `
CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	payer_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	amount DOUBLE NOT NULL,
	currency TEXT NOT NULL,
	status TEXT NOT NULL,
	payment_method TEXT NOT NULL,
	gateway_ref TEXT NOT NULL UNIQUE,
	transaction_id TEXT,
	settled_at TIMESTAMP,
	gateway_metadata TEXT,
	retry_attempt INTEGER NOT NULL DEFAULT 0,
	description TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_payer_product ON orders (payer_id, product_id);`,
	},
	{
		Version:     2,
		Name:        "create_entitlements",
		Description: "One entitlement per payer and product",
		SQL: `
CREATE TABLE IF NOT EXISTS entitlements (
	payer_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	gateway_ref TEXT NOT NULL,
	transaction_id TEXT,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (payer_id, product_id)
);`,
	},
	{
		Version:     3,
		Name:        "create_purchase_counters",
		Description: "Best-effort popularity and purchase counters",
		SQL: `
CREATE TABLE IF NOT EXISTS product_stats (
	product_id TEXT PRIMARY KEY,
	purchase_count BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS payer_stats (
	payer_id TEXT PRIMARY KEY,
	purchase_count BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMP
);`,
	},
}

// runMigrations applies every migration not yet recorded.
func (db *DB) runMigrations() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	count := 0
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := db.conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, description) VALUES (?, ?, ?)`,
			m.Version, m.Name, m.Description); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}
		count++
	}

	if count > 0 {
		logging.Info().Int("applied", count).Msg("Applied database migrations")
	}
	return nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		out[v] = true
	}
	return out, rows.Err()
}

// SchemaVersion returns the highest applied migration.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var v int
	if err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return v, nil
}
