// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/coursepay/internal/logging"
)

// DuckDBStore persists audit events in the ledger database.
type DuckDBStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewDuckDBStore creates a store on db. Call CreateTable before use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the audit table and its indexes.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			outcome TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			actor_type TEXT NOT NULL,
			gateway_ref TEXT,
			source_ip TEXT,
			action TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata TEXT,
			request_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_events(type)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_gateway_ref ON audit_events(gateway_ref)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	logging.Debug().Msg("Audit events table created/verified")
	return nil
}

// Save implements Store.
func (s *DuckDBStore) Save(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadata *string
	if len(event.Metadata) > 0 {
		m := string(event.Metadata)
		metadata = &m
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, timestamp, type, severity, outcome, actor_id, actor_type,
			gateway_ref, source_ip, action, message, metadata, request_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp.UTC(), string(event.Type), string(event.Severity), string(event.Outcome),
		event.Actor.ID, event.Actor.Type, nullable(event.GatewayRef), nullable(event.SourceIP),
		event.Action, event.Message, metadata, nullable(event.RequestID))
	if err != nil {
		return fmt.Errorf("failed to save audit event: %w", err)
	}
	return nil
}

// Query implements Store. Results are newest first.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	where, args := buildConditions(filter)
	query := `SELECT id, timestamp, type, severity, outcome, actor_id, actor_type,
		gateway_ref, source_ip, action, message, metadata, request_id
		FROM audit_events` + where + ` ORDER BY timestamp DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e                            Event
			typ, severity, outcome       string
			ref, ip, metadata, requestID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &typ, &severity, &outcome, &e.Actor.ID, &e.Actor.Type,
			&ref, &ip, &e.Action, &e.Message, &metadata, &requestID); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Type = EventType(typ)
		e.Severity = Severity(severity)
		e.Outcome = Outcome(outcome)
		e.GatewayRef = ref.String
		e.SourceIP = ip.String
		e.RequestID = requestID.String
		if metadata.Valid {
			e.Metadata = []byte(metadata.String)
		}
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count implements Store.
func (s *DuckDBStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	where, args := buildConditions(filter)
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return n, nil
}

// Delete implements Store.
func (s *DuckDBStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE timestamp < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit events: %w", err)
	}
	return result.RowsAffected()
}

func buildConditions(filter QueryFilter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		conditions = append(conditions, "type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.GatewayRef != "" {
		conditions = append(conditions, "gateway_ref = ?")
		args = append(args, filter.GatewayRef)
	}
	if filter.ActorID != "" {
		conditions = append(conditions, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.StartTime.UTC())
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
