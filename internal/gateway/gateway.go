// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

// Package gateway builds signed payment-initiation URLs and authenticates
// inbound gateway parameter sets.
//
// Two adapters exist and exactly one is selected at startup by New:
//
//   - HMACAdapter talks to the real hosted payment page and signs with
//     HMAC-SHA512 over the canonical parameter string.
//   - MockAdapter is a development stand-in with its own page and its own
//     signing key. Its signatures never verify against HMACAdapter.
//
// Business logic only sees the Adapter interface.
package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
	_ "time/tzdata" // gateway time zone must resolve in minimal containers

	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/models"
)

// Adapter is a payment gateway integration.
type Adapter interface {
	// Name identifies the adapter in logs and health output.
	Name() string

	// BuildPaymentURL returns the hosted-page URL that starts payment of order.
	BuildPaymentURL(order *models.Order, req PaymentRequest) (string, error)

	// VerifySignature authenticates an inbound parameter set. A parameter set
	// that is unsigned, incomplete or malformed is never valid.
	VerifySignature(params url.Values) Verification
}

// PaymentRequest carries per-request inputs for BuildPaymentURL. Zero values
// fall back to the configured defaults.
type PaymentRequest struct {
	ReturnURL     string
	CallbackURL   string
	PayerIP       string
	ExpireMinutes int
	BankCode      string
	Locale        string
	PayerEmail    string
	PayerName     string

	// Now overrides the creation timestamp; used by tests.
	Now time.Time
}

// Verification is the result of VerifySignature.
type Verification struct {
	Valid  bool
	Reason string
}

// Verification failure reasons. These are logged, never sent to callers.
const (
	ReasonMissingSignature = "missing signature"
	ReasonMissingField     = "missing required field"
	ReasonMerchantMismatch = "merchant code mismatch"
	ReasonMalformed        = "malformed parameters"
	ReasonBadSignature     = "signature mismatch"
)

var (
	// ErrInvalidOrder is returned when an order cannot be sent to the gateway.
	ErrInvalidOrder = errors.New("order cannot be paid")

	// ErrMalformedEvent is returned by ParseEvent for unusable parameters.
	ErrMalformedEvent = errors.New("malformed gateway event")
)

// New returns the adapter selected by cfg.Mode.
func New(cfg *config.GatewayConfig) (Adapter, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load gateway time zone: %w", err)
	}

	switch cfg.Mode {
	case config.GatewayModeHMAC:
		return NewHMACAdapter(cfg, loc), nil
	case config.GatewayModeMock:
		return NewMockAdapter(cfg, loc), nil
	default:
		return nil, fmt.Errorf("unknown gateway mode %q", cfg.Mode)
	}
}

// Event is the typed view of an inbound settlement parameter set.
type Event struct {
	GatewayRef        string
	AmountMinor       int64
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	BankCode          string
	BankTranNo        string
	CardType          string
	PayDate           string
}

// Amount returns the settled amount in currency units.
func (e *Event) Amount() float64 {
	return FromMinorUnits(e.AmountMinor)
}

// Succeeded reports whether the gateway declared the payment successful.
func (e *Event) Succeeded() bool {
	if e.ResponseCode != ResponseCodeSuccess {
		return false
	}
	return e.TransactionStatus == "" || e.TransactionStatus == ResponseCodeSuccess
}

// FailureCode returns the most specific non-success code.
func (e *Event) FailureCode() string {
	if e.ResponseCode != ResponseCodeSuccess {
		return e.ResponseCode
	}
	return e.TransactionStatus
}

// Metadata returns the gateway fields worth keeping on the Order.
func (e *Event) Metadata() map[string]string {
	m := map[string]string{
		models.MetaResponseCode: e.ResponseCode,
		models.MetaAmountMinor:  strconv.FormatInt(e.AmountMinor, 10),
	}
	set := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	set(models.MetaTransactionStatus, e.TransactionStatus)
	set(models.MetaTransactionNo, e.TransactionNo)
	set(models.MetaBankCode, e.BankCode)
	set(models.MetaCardType, e.CardType)
	set(models.MetaPayDate, e.PayDate)
	return m
}

// ParseEvent extracts the settlement fields from params. It does not verify
// the signature; call Adapter.VerifySignature first.
func ParseEvent(params url.Values) (*Event, error) {
	ref := params.Get(ParamTxnRef)
	if ref == "" {
		return nil, fmt.Errorf("%w: %s missing", ErrMalformedEvent, ParamTxnRef)
	}
	minor, err := strconv.ParseInt(params.Get(ParamAmount), 10, 64)
	if err != nil || minor < 0 {
		return nil, fmt.Errorf("%w: %s not a non-negative integer", ErrMalformedEvent, ParamAmount)
	}
	return &Event{
		GatewayRef:        ref,
		AmountMinor:       minor,
		ResponseCode:      params.Get(ParamResponseCode),
		TransactionStatus: params.Get(ParamTransactionStatus),
		TransactionNo:     params.Get(ParamTransactionNo),
		BankCode:          params.Get(ParamBankCode),
		BankTranNo:        params.Get(ParamBankTranNo),
		CardType:          params.Get(ParamCardType),
		PayDate:           params.Get(ParamPayDate),
	}, nil
}

func checkRequired(params url.Values) (Verification, bool) {
	if params.Get(ParamSecureHash) == "" {
		return Verification{Reason: ReasonMissingSignature}, false
	}
	for _, k := range settlementRequired {
		if params.Get(k) == "" {
			return Verification{Reason: ReasonMissingField + ": " + k}, false
		}
	}
	if _, err := ParseEvent(params); err != nil {
		return Verification{Reason: ReasonMalformed}, false
	}
	return Verification{}, true
}

func validateOrder(order *models.Order) error {
	if order == nil || order.GatewayRef == "" {
		return fmt.Errorf("%w: missing reference", ErrInvalidOrder)
	}
	if order.Amount <= 0 {
		return fmt.Errorf("%w: non-positive amount", ErrInvalidOrder)
	}
	if order.Status != models.OrderStatusPending {
		return fmt.Errorf("%w: status %s", ErrInvalidOrder, order.Status)
	}
	return nil
}
