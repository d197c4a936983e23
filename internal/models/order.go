// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

// Package models defines the data structures shared by the order ledger,
// the settlement engine and the HTTP API.
package models

import (
	"time"
)

// OrderStatus is the lifecycle state of an Order.
type OrderStatus string

// Order statuses. Pending is the only non-terminal state.
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// IsTerminal reports whether no further transition is permitted.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusFailed:
		return true
	}
	return false
}

// Metadata keys recorded in Order.GatewayMetadata.
const (
	MetaResponseCode      = "response_code"
	MetaTransactionStatus = "transaction_status"
	MetaTransactionNo     = "transaction_no"
	MetaBankCode          = "bank_code"
	MetaCardType          = "card_type"
	MetaPayDate           = "pay_date"
	MetaAmountMinor       = "amount_minor"
	MetaFailureCode       = "failure_code"
	MetaProvisioningError = "provisioning_error"
)

// Order is one purchase attempt. Amount and Currency never change after
// creation; a failed Order is retried by creating a new Order with a fresh
// GatewayRef and an incremented RetryAttempt.
type Order struct {
	ID              string            `json:"id"`
	PayerID         string            `json:"payer_id"`
	ProductID       string            `json:"product_id"`
	Amount          float64           `json:"amount"`
	Currency        string            `json:"currency"`
	Status          OrderStatus       `json:"status"`
	PaymentMethod   string            `json:"payment_method"`
	GatewayRef      string            `json:"gateway_ref"`
	TransactionID   string            `json:"transaction_id,omitempty"`
	SettledAt       *time.Time        `json:"settled_at,omitempty"`
	GatewayMetadata map[string]string `json:"gateway_metadata,omitempty"`
	RetryAttempt    int               `json:"retry_attempt"`
	Description     string            `json:"description,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Transition describes the single permitted mutation of a pending Order.
type Transition struct {
	GatewayRef    string
	To            OrderStatus
	TransactionID string
	SettledAt     *time.Time
	Metadata      map[string]string
}

// Entitlement grants a payer access to a product. At most one exists per
// (PayerID, ProductID) regardless of how many Orders were placed for it.
type Entitlement struct {
	ID            string    `json:"id"`
	PayerID       string    `json:"payer_id"`
	ProductID     string    `json:"product_id"`
	OrderID       string    `json:"order_id"`
	GatewayRef    string    `json:"gateway_ref"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProvisioningFailure is a settled Order whose entitlement could not be
// created and awaits manual remediation.
type ProvisioningFailure struct {
	GatewayRef string    `json:"gateway_ref"`
	OrderID    string    `json:"order_id"`
	PayerID    string    `json:"payer_id"`
	ProductID  string    `json:"product_id"`
	Error      string    `json:"error"`
	FailedAt   time.Time `json:"failed_at"`
}
