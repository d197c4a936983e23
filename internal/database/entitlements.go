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

	"github.com/tomtom215/coursepay/internal/models"
)

const entitlementColumns = `id, payer_id, product_id, order_id, gateway_ref, transaction_id, created_at`

// CreateEntitlement inserts e unless the payer already owns the product.
// created is false when an entitlement already existed, in which case the
// stored row is left untouched.
func (db *DB) CreateEntitlement(ctx context.Context, e *models.Entitlement) (created bool, err error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx, `
		INSERT INTO entitlements (`+entitlementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (payer_id, product_id) DO NOTHING`,
		e.ID, e.PayerID, e.ProductID, e.OrderID, e.GatewayRef, nullString(e.TransactionID), e.CreatedAt.UTC())
	if err != nil {
		// A concurrent insert of the same key surfaces as a conflict rather
		// than being absorbed by ON CONFLICT.
		if isTransactionConflict(err) || isUniqueViolation(err) {
			for attempt := 0; attempt < conflictRereads; attempt++ {
				if _, getErr := db.GetEntitlement(ctx, e.PayerID, e.ProductID); getErr == nil {
					return false, nil
				}
				if sleepCtx(ctx, conflictRereadDelay) != nil {
					break
				}
			}
		}
		return false, fmt.Errorf("failed to insert entitlement: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// GetEntitlement returns the payer's entitlement to product.
func (db *DB) GetEntitlement(ctx context.Context, payerID, productID string) (*models.Entitlement, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var (
		e     models.Entitlement
		txnID sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT `+entitlementColumns+` FROM entitlements
		WHERE payer_id = ? AND product_id = ?`, payerID, productID).
		Scan(&e.ID, &e.PayerID, &e.ProductID, &e.OrderID, &e.GatewayRef, &txnID, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntitlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}
	e.TransactionID = txnID.String
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

// HasEntitlement reports whether the payer owns product.
func (db *DB) HasEntitlement(ctx context.Context, payerID, productID string) (bool, error) {
	_, err := db.GetEntitlement(ctx, payerID, productID)
	if errors.Is(err, ErrEntitlementNotFound) {
		return false, nil
	}
	return err == nil, err
}

// CountEntitlements counts entitlements for one payer and product. The
// primary key bounds it at one; tests use it to assert exactly that.
func (db *DB) CountEntitlements(ctx context.Context, payerID, productID string) (int, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entitlements WHERE payer_id = ? AND product_id = ?`,
		payerID, productID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entitlements: %w", err)
	}
	return n, nil
}
