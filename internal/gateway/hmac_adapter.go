// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package gateway

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/models"
)

// HMACAdapter is the production gateway adapter. It holds a read-only copy
// of the merchant settings taken at construction.
type HMACAdapter struct {
	cfg    config.GatewayConfig
	loc    *time.Location
	signer signer
}

// NewHMACAdapter creates the production adapter. loc is the gateway time zone.
func NewHMACAdapter(cfg *config.GatewayConfig, loc *time.Location) *HMACAdapter {
	return &HMACAdapter{
		cfg:    *cfg,
		loc:    loc,
		signer: newSHA512Signer(cfg.HashSecret),
	}
}

// Name implements Adapter.
func (a *HMACAdapter) Name() string { return "hmac" }

// BuildPaymentURL implements Adapter.
func (a *HMACAdapter) BuildPaymentURL(order *models.Order, req PaymentRequest) (string, error) {
	params, err := paymentParams(&a.cfg, a.loc, a.cfg.MerchantCode, order, req)
	if err != nil {
		return "", err
	}
	return a.cfg.BaseURL + "?" + encodeSigned(params, a.signer.signParams(params)), nil
}

// VerifySignature implements Adapter.
func (a *HMACAdapter) VerifySignature(params url.Values) Verification {
	if v, ok := checkRequired(params); !ok {
		return v
	}
	if params.Get(ParamMerchantCode) != a.cfg.MerchantCode {
		return Verification{Reason: ReasonMerchantMismatch}
	}
	if !a.signer.matches(params, params.Get(ParamSecureHash)) {
		return Verification{Reason: ReasonBadSignature}
	}
	return Verification{Valid: true}
}

// paymentParams assembles the unsigned outbound parameter set.
func paymentParams(cfg *config.GatewayConfig, loc *time.Location, merchant string, order *models.Order, req PaymentRequest) (url.Values, error) {
	if err := validateOrder(order); err != nil {
		return nil, err
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	expire := req.ExpireMinutes
	if expire <= 0 {
		expire = cfg.ExpireMinutes
	}
	returnURL := firstNonEmpty(req.ReturnURL, cfg.ReturnURL)
	callbackURL := firstNonEmpty(req.CallbackURL, cfg.CallbackURL)
	if returnURL == "" {
		return nil, fmt.Errorf("%w: no return URL", ErrInvalidOrder)
	}

	currency := firstNonEmpty(order.Currency, cfg.CurrencyCode)
	info := order.Description
	if info == "" {
		info = "Payment for course " + order.ProductID + " order " + order.GatewayRef
	}

	p := url.Values{}
	p.Set(ParamVersion, cfg.Version)
	p.Set(ParamCommand, cfg.Command)
	p.Set(ParamMerchantCode, merchant)
	p.Set(ParamAmount, strconv.FormatInt(ToMinorUnits(order.Amount), 10))
	p.Set(ParamCurrency, currency)
	p.Set(ParamTxnRef, order.GatewayRef)
	p.Set(ParamOrderInfo, info)
	p.Set(ParamOrderType, cfg.OrderType)
	p.Set(ParamLocale, firstNonEmpty(req.Locale, cfg.Locale))
	p.Set(ParamReturnURL, returnURL)
	p.Set(ParamIPNURL, callbackURL)
	p.Set(ParamIPAddr, firstNonEmpty(req.PayerIP, "127.0.0.1"))
	p.Set(ParamCreateDate, now.In(loc).Format(TimestampLayout))
	p.Set(ParamExpireDate, now.Add(time.Duration(expire)*time.Minute).In(loc).Format(TimestampLayout))
	if req.BankCode != "" {
		p.Set(ParamBankCode, req.BankCode)
	}
	if req.PayerEmail != "" {
		p.Set(ParamBillEmail, req.PayerEmail)
	}
	if req.PayerName != "" {
		p.Set(ParamBillFirstName, req.PayerName)
	}
	return p, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
