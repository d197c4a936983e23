// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package models

import "time"

// APIResponse is the envelope for every JSON API response except the
// gateway acknowledgement, whose shape is dictated by the gateway.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError is a machine-readable error code plus a human message.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// CreateOrderRequest starts a new purchase for the authenticated payer.
type CreateOrderRequest struct {
	ProductID string `json:"product_id" validate:"required,max=64,alphanumdash"`
	// Amount and Currency are optional quotes. The order is always created
	// at the catalog price; a quote that differs is rejected.
	Amount        float64 `json:"amount" validate:"omitempty,gt=0,lte=1000000000"`
	Currency      string  `json:"currency" validate:"omitempty,len=3,uppercase"`
	Description   string  `json:"description" validate:"omitempty,max=255"`
	BankCode      string  `json:"bank_code" validate:"omitempty,max=20,alphanum"`
	Locale        string  `json:"locale" validate:"omitempty,oneof=vn en"`
	PayerEmail    string  `json:"payer_email" validate:"omitempty,email,max=254"`
	PayerName     string  `json:"payer_name" validate:"omitempty,max=100"`
	PaymentMethod string  `json:"payment_method" validate:"omitempty,max=32"`
}

// RetryOrderRequest carries optional overrides for a retry.
type RetryOrderRequest struct {
	BankCode string `json:"bank_code" validate:"omitempty,max=20,alphanum"`
	Locale   string `json:"locale" validate:"omitempty,oneof=vn en"`
}

// CheckoutResponse is returned by order creation and retry.
type CheckoutResponse struct {
	Order      *Order `json:"order"`
	PaymentURL string `json:"payment_url"`
}

// OrderHistory is a payer's order list with their settled purchase count.
type OrderHistory struct {
	Orders    []*Order `json:"orders"`
	Purchases int64    `json:"purchases"`
}

// HealthStatus reports dependency health. Orders is omitted when the
// ledger cannot be counted.
type HealthStatus struct {
	Status            string                `json:"status"`
	Database          bool                  `json:"database"`
	Orders            map[OrderStatus]int64 `json:"orders,omitempty"`
	EventsState       string                `json:"events_state"`
	ProvisioningState string                `json:"provisioning_state"`
	GatewayMode       string                `json:"gateway_mode"`
	JournalReady      bool                  `json:"journal_ready"`
}
