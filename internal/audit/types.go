// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

// Package audit records the payment audit trail: every settlement decision,
// every rejected notification and every manual remediation, with who or
// what caused it.
package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes audit events.
type EventType string

const (
	// Settlement events
	EventTypePaymentSettled          EventType = "payment.settled"
	EventTypePaymentFailed           EventType = "payment.failed"
	EventTypePaymentSignatureInvalid EventType = "payment.signature_invalid"
	EventTypePaymentAmountMismatch   EventType = "payment.amount_mismatch"
	EventTypePaymentDuplicate        EventType = "payment.duplicate"
	EventTypePaymentOrderNotFound    EventType = "payment.order_not_found"

	// Provisioning events
	EventTypeProvisioningFailed   EventType = "provisioning.failed"
	EventTypeProvisioningResolved EventType = "provisioning.resolved"

	// Order events
	EventTypeOrderCreated EventType = "order.created"
	EventTypeOrderRetried EventType = "order.retried"

	// Authorization events
	EventTypeAuthzDenied EventType = "authz.denied"
)

// Severity indicates the severity level of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Outcome indicates whether an action succeeded or failed.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Actor types.
const (
	ActorGateway = "gateway"
	ActorPayer   = "payer"
	ActorAdmin   = "admin"
	ActorSystem  = "system"
)

// Event is one audit record.
type Event struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Type       EventType       `json:"type"`
	Severity   Severity        `json:"severity"`
	Outcome    Outcome         `json:"outcome"`
	Actor      Actor           `json:"actor"`
	GatewayRef string          `json:"gateway_ref,omitempty"`
	SourceIP   string          `json:"source_ip,omitempty"`
	Action     string          `json:"action"`
	Message    string          `json:"message"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
}

// Actor is who caused the event.
type Actor struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Store persists audit events.
type Store interface {
	Save(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	Count(ctx context.Context, filter QueryFilter) (int64, error)
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}

// QueryFilter selects audit events. Zero fields match everything.
type QueryFilter struct {
	Types      []EventType `json:"types,omitempty"`
	GatewayRef string      `json:"gateway_ref,omitempty"`
	ActorID    string      `json:"actor_id,omitempty"`
	StartTime  *time.Time  `json:"start_time,omitempty"`
	Limit      int         `json:"limit,omitempty"`
}

func (f QueryFilter) matches(e *Event) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.GatewayRef != "" && e.GatewayRef != f.GatewayRef {
		return false
	}
	if f.ActorID != "" && e.Actor.ID != f.ActorID {
		return false
	}
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	return true
}
