// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IncrementProductPurchases bumps the product's purchase counter.
func (db *DB) IncrementProductPurchases(ctx context.Context, productID string) error {
	return db.incrementCounter(ctx, "product_stats", "product_id", productID)
}

// IncrementPayerPurchases bumps the payer's purchase counter.
func (db *DB) IncrementPayerPurchases(ctx context.Context, payerID string) error {
	return db.incrementCounter(ctx, "payer_stats", "payer_id", payerID)
}

// ProductPurchases returns the product's counter, zero when never bumped.
func (db *DB) ProductPurchases(ctx context.Context, productID string) (int64, error) {
	return db.readCounter(ctx, "product_stats", "product_id", productID)
}

// PayerPurchases returns the payer's counter, zero when never bumped.
func (db *DB) PayerPurchases(ctx context.Context, payerID string) (int64, error) {
	return db.readCounter(ctx, "payer_stats", "payer_id", payerID)
}

// table and key are package constants, never caller input.
func (db *DB) incrementCounter(ctx context.Context, table, key, id string) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	if _, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, purchase_count, updated_at) VALUES (?, 0, ?) ON CONFLICT DO NOTHING`, table, key),
		id, now); err != nil && !isTransactionConflict(err) {
		return fmt.Errorf("failed to seed %s counter: %w", table, err)
	}

	if _, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET purchase_count = purchase_count + 1, updated_at = ? WHERE %s = ?`, table, key),
		now, id); err != nil {
		return fmt.Errorf("failed to increment %s counter: %w", table, err)
	}
	return nil
}

func (db *DB) readCounter(ctx context.Context, table, key, id string) (int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var n int64
	err := db.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT purchase_count FROM %s WHERE %s = ?`, table, key), id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s counter: %w", table, err)
	}
	return n, nil
}
