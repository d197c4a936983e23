// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package gateway

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/url"
	"time"

	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/models"
)

const (
	// MockMerchantCode is the merchant code the mock page signs with.
	MockMerchantCode = "MOCKPAY1"

	// mockSecret is deliberately not configurable; the mock adapter must
	// never be able to mint signatures the real gateway secret would accept.
	mockSecret = "coursepay-mock-gateway-development-only"
)

// ErrNotMockPayment is returned by Simulate for parameters the mock page did
// not issue.
var ErrNotMockPayment = errors.New("parameters were not issued by the mock gateway")

// Simulator is implemented by adapters that can act as their own hosted
// page. Only MockAdapter implements it.
type Simulator interface {
	// Simulate turns a signed outbound payment parameter set into the signed
	// settlement event the gateway would deliver with responseCode.
	Simulate(outbound url.Values, responseCode string) (url.Values, error)
}

// MockAdapter is a development-only gateway. It is selected with
// gateway.mode=mock and refused in production by config validation.
type MockAdapter struct {
	cfg    config.GatewayConfig
	loc    *time.Location
	signer signer
	now    func() time.Time
}

// NewMockAdapter creates the mock adapter.
func NewMockAdapter(cfg *config.GatewayConfig, loc *time.Location) *MockAdapter {
	return &MockAdapter{
		cfg:    *cfg,
		loc:    loc,
		signer: newSHA256Signer(mockSecret),
		now:    time.Now,
	}
}

// Name implements Adapter.
func (a *MockAdapter) Name() string { return "mock" }

// BuildPaymentURL implements Adapter.
func (a *MockAdapter) BuildPaymentURL(order *models.Order, req PaymentRequest) (string, error) {
	params, err := paymentParams(&a.cfg, a.loc, MockMerchantCode, order, req)
	if err != nil {
		return "", err
	}
	return a.cfg.MockPageURL + "?" + encodeSigned(params, a.signer.signParams(params)), nil
}

// VerifySignature implements Adapter.
func (a *MockAdapter) VerifySignature(params url.Values) Verification {
	if v, ok := checkRequired(params); !ok {
		return v
	}
	if params.Get(ParamMerchantCode) != MockMerchantCode {
		return Verification{Reason: ReasonMerchantMismatch}
	}
	if !a.signer.matches(params, params.Get(ParamSecureHash)) {
		return Verification{Reason: ReasonBadSignature}
	}
	return Verification{Valid: true}
}

// Simulate implements Simulator.
func (a *MockAdapter) Simulate(outbound url.Values, responseCode string) (url.Values, error) {
	if outbound.Get(ParamSecureHash) == "" || !a.signer.matches(outbound, outbound.Get(ParamSecureHash)) {
		return nil, ErrNotMockPayment
	}

	txn := make([]byte, 6)
	if _, err := rand.Read(txn); err != nil {
		return nil, err
	}

	status := responseCode
	event := url.Values{}
	event.Set(ParamMerchantCode, MockMerchantCode)
	event.Set(ParamAmount, outbound.Get(ParamAmount))
	event.Set(ParamTxnRef, outbound.Get(ParamTxnRef))
	event.Set(ParamOrderInfo, outbound.Get(ParamOrderInfo))
	event.Set(ParamResponseCode, responseCode)
	event.Set(ParamTransactionStatus, status)
	event.Set(ParamTransactionNo, hex.EncodeToString(txn))
	event.Set(ParamBankCode, firstNonEmpty(outbound.Get(ParamBankCode), "MOCKBANK"))
	event.Set(ParamCardType, "ATM")
	event.Set(ParamPayDate, a.now().In(a.loc).Format(TimestampLayout))
	event.Set(ParamSecureHash, a.signer.signParams(event))
	return event, nil
}

// SignForTest signs params with the mock key. Test helpers in other packages
// use it to forge well-signed events without a real merchant secret.
func (a *MockAdapter) SignForTest(params url.Values) url.Values {
	out := url.Values{}
	for k, v := range params {
		out[k] = append([]string(nil), v...)
	}
	out.Del(ParamSecureHash)
	out.Set(ParamSecureHash, a.signer.signParams(out))
	return out
}
