// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package settlement

import (
	"time"

	"github.com/tomtom215/coursepay/internal/models"
)

// Outcome classifies one reconciliation. It drives the acknowledgement the
// gateway receives and therefore its retry behaviour.
type Outcome string

// Outcomes.
const (
	OutcomeSuccess          Outcome = "success"
	OutcomeAlreadyProcessed Outcome = "already-processed"
	OutcomeOrderNotFound    Outcome = "order-not-found"
	OutcomeAmountInvalid    Outcome = "amount-invalid"
	OutcomeSignatureInvalid Outcome = "signature-invalid"
	OutcomeInternalError    Outcome = "internal-error"
)

type ackEntry struct {
	code    string
	message string
}

var acks = map[Outcome]ackEntry{
	OutcomeSuccess:          {"00", "Confirm Success"},
	OutcomeOrderNotFound:    {"01", "Order not found"},
	OutcomeAlreadyProcessed: {"02", "Order already confirmed"},
	OutcomeAmountInvalid:    {"04", "Invalid amount"},
	OutcomeSignatureInvalid: {"97", "Invalid signature"},
	OutcomeInternalError:    {"99", "Unknown error"},
}

// Code returns the gateway response code for o. Unknown outcomes map to the
// internal error code.
func (o Outcome) Code() string {
	if a, ok := acks[o]; ok {
		return a.code
	}
	return acks[OutcomeInternalError].code
}

// Message returns the fixed acknowledgement message for o.
func (o Outcome) Message() string {
	if a, ok := acks[o]; ok {
		return a.message
	}
	return acks[OutcomeInternalError].message
}

// Retryable reports whether the gateway will redeliver after receiving o.
func (o Outcome) Retryable() bool {
	return o != OutcomeSuccess && o != OutcomeAlreadyProcessed
}

// Ack returns the acknowledgement body for o.
func (o Outcome) Ack() Ack {
	return Ack{RspCode: o.Code(), Message: o.Message()}
}

// Ack is the body the gateway expects in reply to a webhook. Field names are
// fixed by the gateway protocol.
type Ack struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// Result is the full, internal view of a reconciliation. Only Outcome ever
// leaves the process.
type Result struct {
	Outcome    Outcome
	GatewayRef string

	// Order is the order after reconciliation, when one was located.
	Order *models.Order

	// PaymentSucceeded is true when this delivery moved the order to
	// completed.
	PaymentSucceeded bool

	// Entitlement is set when provisioning ran and succeeded.
	Entitlement *models.Entitlement

	// ProvisioningErr is set when the payment settled but the entitlement
	// could not be created. It never changes Outcome.
	ProvisioningErr error

	// Duplicate is true when the journal had already seen this delivery.
	Duplicate bool

	// Err carries the internal cause of a non-success outcome.
	Err error

	Duration time.Duration
}
