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

	"github.com/goccy/go-json"

	"github.com/tomtom215/coursepay/internal/models"
)

const orderColumns = `id, payer_id, product_id, amount, currency, status, payment_method,
	gateway_ref, transaction_id, settled_at, gateway_metadata, retry_attempt, description,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateOrder inserts a new pending order.
func (db *DB) CreateOrder(ctx context.Context, o *models.Order) error {
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}
	if !o.Status.Valid() {
		return fmt.Errorf("invalid order status %q", o.Status)
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = o.CreatedAt

	meta, err := encodeMetadata(o.GatewayMetadata)
	if err != nil {
		return err
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.PayerID, o.ProductID, o.Amount, o.Currency, string(o.Status), o.PaymentMethod,
		o.GatewayRef, nullString(o.TransactionID), nullTime(o.SettledAt), meta, o.RetryAttempt,
		nullString(o.Description), o.CreatedAt.UTC(), o.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateReference, o.GatewayRef)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// GetOrderByReference returns the order carrying the gateway reference.
func (db *DB) GetOrderByReference(ctx context.Context, ref string) (*models.Order, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE gateway_ref = ?`, ref)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", ref, err)
	}
	return o, nil
}

// TransitionOrder moves a pending order to a terminal status. The update is
// conditional on status = 'pending', so among any number of concurrent
// callers for the same reference at most one succeeds. The others receive
// ErrTransitionConflict.
func (db *DB) TransitionOrder(ctx context.Context, t models.Transition) error {
	if !t.To.IsTerminal() {
		return fmt.Errorf("transition target %q is not terminal", t.To)
	}
	meta, err := encodeMetadata(t.Metadata)
	if err != nil {
		return err
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, transaction_id = ?, settled_at = ?, gateway_metadata = ?, updated_at = ?
		WHERE gateway_ref = ? AND status = ?`,
		string(t.To), nullString(t.TransactionID), nullTime(t.SettledAt), meta, time.Now().UTC(),
		t.GatewayRef, string(models.OrderStatusPending))
	if err != nil {
		if isTransactionConflict(err) {
			return db.resolveConflict(ctx, t.GatewayRef, err)
		}
		return fmt.Errorf("failed to transition order %s: %w", t.GatewayRef, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Zero rows: either the reference is unknown or someone else won.
	if _, err := db.GetOrderByReference(ctx, t.GatewayRef); err != nil {
		return err
	}
	return ErrTransitionConflict
}

// resolveConflict decides what a DuckDB write-write conflict meant. If the
// competing writer already made the order terminal this caller lost the race.
func (db *DB) resolveConflict(ctx context.Context, ref string, cause error) error {
	for attempt := 0; attempt < conflictRereads; attempt++ {
		o, err := db.GetOrderByReference(ctx, ref)
		if err != nil {
			return fmt.Errorf("failed to re-read order after conflict: %w", err)
		}
		if o.Status.IsTerminal() {
			return ErrTransitionConflict
		}
		if err := sleepCtx(ctx, conflictRereadDelay); err != nil {
			break
		}
	}
	return fmt.Errorf("transition of order %s conflicted: %w", ref, cause)
}

// AnnotateOrder merges extra entries into an order's gateway metadata
// without touching its status.
func (db *DB) AnnotateOrder(ctx context.Context, ref string, extra map[string]string) error {
	if len(extra) == 0 {
		return nil
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT gateway_metadata FROM orders WHERE gateway_ref = ?`, ref).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read order metadata: %w", err)
	}

	meta, err := decodeMetadata(raw)
	if err != nil {
		return err
	}
	if meta == nil {
		meta = make(map[string]string, len(extra))
	}
	for k, v := range extra {
		meta[k] = v
	}
	encoded, err := encodeMetadata(meta)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET gateway_metadata = ?, updated_at = ? WHERE gateway_ref = ?`,
		encoded, time.Now().UTC(), ref); err != nil {
		return fmt.Errorf("failed to annotate order %s: %w", ref, err)
	}
	return tx.Commit()
}

// ListOrdersByPayer returns the payer's orders, newest first.
func (db *DB) ListOrdersByPayer(ctx context.Context, payerID string, limit int) ([]*models.Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE payer_id = ?
		ORDER BY created_at DESC, retry_attempt DESC
		LIMIT ?`, payerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountOrdersByStatus returns the number of orders in each status.
func (db *DB) CountOrdersByStatus(ctx context.Context) (map[models.OrderStatus]int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	defer rows.Close()

	out := make(map[models.OrderStatus]int64)
	for rows.Next() {
		var s string
		var n int64
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("failed to scan order count: %w", err)
		}
		out[models.OrderStatus(s)] = n
	}
	return out, rows.Err()
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o           models.Order
		status      string
		txnID       sql.NullString
		settledAt   sql.NullTime
		meta        sql.NullString
		description sql.NullString
	)
	if err := row.Scan(&o.ID, &o.PayerID, &o.ProductID, &o.Amount, &o.Currency, &status,
		&o.PaymentMethod, &o.GatewayRef, &txnID, &settledAt, &meta, &o.RetryAttempt,
		&description, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}

	o.Status = models.OrderStatus(status)
	o.TransactionID = txnID.String
	o.Description = description.String
	if settledAt.Valid {
		t := settledAt.Time.UTC()
		o.SettledAt = &t
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()

	md, err := decodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	o.GatewayMetadata = md
	return &o, nil
}

func encodeMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode gateway metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeMetadata(raw sql.NullString) (map[string]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil, fmt.Errorf("failed to decode gateway metadata: %w", err)
	}
	return m, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
