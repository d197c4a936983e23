// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

// Package events publishes settlement notifications for downstream
// consumers (mailers, analytics, enrollment sync).
//
// Publishing is fire-and-forget: a settlement never waits on, or fails
// because of, the event bus. Each event carries a deterministic ID derived
// from its type and gateway reference, so JetStream's duplicate window
// drops re-publications caused by retried deliveries.
package events

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Type names a settlement event.
type Type string

// Event types.
const (
	TypePaymentSettled     Type = "payment.settled"
	TypePaymentFailed      Type = "payment.failed"
	TypeEntitlementGranted Type = "entitlement.granted"
)

var eventNamespace = uuid.MustParse("6f1c7d3e-2b8a-4c59-9e0f-5a7b3c2d1e4f")

// Event is the wire form of a settlement notification.
type Event struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	GatewayRef    string    `json:"gateway_ref"`
	OrderID       string    `json:"order_id"`
	PayerID       string    `json:"payer_id"`
	ProductID     string    `json:"product_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	TransactionID string    `json:"transaction_id,omitempty"`
	FailureCode   string    `json:"failure_code,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewEvent returns an Event of type t for ref with a deterministic ID.
func NewEvent(t Type, ref string) *Event {
	return &Event{
		ID:         EventID(t, ref),
		Type:       t,
		GatewayRef: ref,
		OccurredAt: time.Now().UTC(),
	}
}

// EventID derives the event ID from type and gateway reference.
func EventID(t Type, ref string) string {
	return uuid.NewSHA1(eventNamespace, []byte(string(t)+"|"+ref)).String()
}

// Topic returns the subject the event is published on.
func (e *Event) Topic(prefix string) string {
	return Topic(prefix, e.Type)
}

// Topic returns the subject for events of type t.
func Topic(prefix string, t Type) string {
	if prefix == "" {
		return string(t)
	}
	return prefix + "." + string(t)
}

// Marshal encodes the event.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes an event payload.
func Unmarshal(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
