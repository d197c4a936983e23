// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

// Package database is the DuckDB-backed order ledger.
//
// Orders, entitlements and purchase counters live here. The only write that
// changes an order's status is TransitionOrder, a conditional UPDATE that
// succeeds for at most one caller per order; every coordination guarantee of
// the settlement path rests on it.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/logging"
)

const (
	// defaultQueryTimeout applies when the caller's context has no deadline.
	defaultQueryTimeout = 30 * time.Second

	// A losing writer re-reads the row this many times while the winner's
	// commit becomes visible.
	conflictRereads     = 5
	conflictRereadDelay = 10 * time.Millisecond
)

var (
	// ErrOrderNotFound is returned when no order matches the lookup.
	ErrOrderNotFound = errors.New("order not found")

	// ErrTransitionConflict is returned when the order was no longer pending
	// at the moment of the conditional update.
	ErrTransitionConflict = errors.New("order is not pending")

	// ErrEntitlementNotFound is returned when the payer does not own the product.
	ErrEntitlementNotFound = errors.New("entitlement not found")

	// ErrDuplicateReference is returned when a gateway reference is reused.
	ErrDuplicateReference = errors.New("gateway reference already exists")
)

// DB wraps the DuckDB connection pool.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens the ledger and applies pending migrations.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	if cfg.Path != ":memory:" && cfg.Path != "" {
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&autoinstall_known_extensions=false&autoload_known_extensions=false",
		path, threads)
	if cfg.MaxMemory != "" {
		connStr += "&max_memory=" + cfg.MaxMemory
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	db := &DB{conn: conn, cfg: cfg}
	if err := db.runMigrations(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Order ledger ready")
	return db, nil
}

// Conn exposes the pool for collaborators that keep their own tables
// (the audit store).
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks that the store is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()
	return db.conn.PingContext(ctx)
}

// Close checkpoints the WAL and closes the pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}
	return db.conn.Close()
}

// ensureContext adds the default timeout when ctx has no deadline.
func ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// isTransactionConflict reports DuckDB optimistic concurrency failures, which
// occur when two connections update the same row at once.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Transaction conflict") ||
		strings.Contains(s, "Conflict on update") ||
		strings.Contains(s, "write-write conflict")
}

// isUniqueViolation matches DuckDB's duplicate-key errors only. NOT NULL
// and CHECK failures share the "Constraint Error" prefix and must not match.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Duplicate key") ||
		strings.Contains(s, "violates primary key") ||
		strings.Contains(s, "violates unique constraint")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
