// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/models"
)

const testSecret = "TESTSECRETTESTSECRETTESTSECRET12"

func testGatewayConfig() *config.GatewayConfig {
	return &config.GatewayConfig{
		Mode:              config.GatewayModeHMAC,
		MerchantCode:      "DEMO0001",
		HashSecret:        testSecret,
		BaseURL:           "https://sandbox.gateway.example/pay",
		Version:           "2.1.0",
		Command:           "pay",
		CurrencyCode:      "VND",
		Locale:            "vn",
		OrderType:         "other",
		TimeZone:          "Asia/Ho_Chi_Minh",
		ReturnURL:         "https://api.example.com/api/v1/payments/return",
		CallbackURL:       "https://api.example.com/api/v1/payments/webhook",
		FrontendResultURL: "https://app.example.com/payment/result",
		ExpireMinutes:     15,
		MockPageURL:       "http://localhost:8080/mock-gateway/pay",
	}
}

func newTestHMACAdapter(t *testing.T) *HMACAdapter {
	t.Helper()
	cfg := testGatewayConfig()
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h, ok := a.(*HMACAdapter)
	if !ok {
		t.Fatalf("expected *HMACAdapter, got %T", a)
	}
	return h
}

func testOrder() *models.Order {
	return &models.Order{
		ID:         "o-1",
		PayerID:    "payer-1",
		ProductID:  "course-101",
		Amount:     500000,
		Currency:   "VND",
		Status:     models.OrderStatusPending,
		GatewayRef: "R1",
	}
}

// settlementParams returns a signed successful settlement event for ref.
func settlementParams(secret, merchant, ref, amountMinor, code string) url.Values {
	p := url.Values{}
	p.Set(ParamMerchantCode, merchant)
	p.Set(ParamTxnRef, ref)
	p.Set(ParamAmount, amountMinor)
	p.Set(ParamResponseCode, code)
	p.Set(ParamTransactionStatus, code)
	p.Set(ParamTransactionNo, "14012345")
	p.Set(ParamBankCode, "NCB")
	p.Set(ParamPayDate, "20260101120000")
	p.Set(ParamOrderInfo, "Payment for course 101")
	p.Set(ParamSecureHash, newSHA512Signer(secret).signParams(p))
	return p
}

func TestCanonicalize_SortedAndEscaped(t *testing.T) {
	t.Parallel()

	p := url.Values{}
	p.Set("vnp_b", "two words")
	p.Set("vnp_a", "1")
	p.Set("vnp_empty", "")
	p.Set(ParamSecureHash, "ignored")
	p.Set(ParamSecureHashType, "HmacSHA512")

	got := Canonicalize(p)
	want := "vnp_a=1&vnp_b=two+words"
	if got != want {
		t.Errorf("Canonicalize = %q, want %q", got, want)
	}
}

func TestCanonicalize_InsertionOrderIndependent(t *testing.T) {
	t.Parallel()

	a := url.Values{}
	a.Set(ParamTxnRef, "R1")
	a.Set(ParamAmount, "50000000")
	a.Set(ParamResponseCode, "00")

	b := url.Values{}
	b.Set(ParamResponseCode, "00")
	b.Set(ParamAmount, "50000000")
	b.Set(ParamTxnRef, "R1")

	if Canonicalize(a) != Canonicalize(b) {
		t.Error("canonical form must not depend on insertion order")
	}
}

func TestSigner_KnownVector(t *testing.T) {
	t.Parallel()

	data := "vnp_Amount=100&vnp_TxnRef=R1"
	mac := hmac.New(sha512.New, []byte(testSecret))
	mac.Write([]byte(data))
	want := hex.EncodeToString(mac.Sum(nil))

	if got := newSHA512Signer(testSecret).sign(data); got != want {
		t.Errorf("sign = %s, want %s", got, want)
	}
}

func TestBuildPaymentURL(t *testing.T) {
	t.Parallel()

	a := newTestHMACAdapter(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	raw, err := a.BuildPaymentURL(testOrder(), PaymentRequest{
		PayerIP:    "203.0.113.9",
		PayerEmail: "jane@example.com",
		Now:        now,
	})
	if err != nil {
		t.Fatalf("BuildPaymentURL: %v", err)
	}
	if !strings.HasPrefix(raw, "https://sandbox.gateway.example/pay?") {
		t.Fatalf("unexpected base: %s", raw)
	}
	query := raw[strings.Index(raw, "?")+1:]
	if !strings.Contains(query[strings.LastIndex(query, "&"):], ParamSecureHash+"=") {
		t.Error("signature must be the final parameter")
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()

	checks := map[string]string{
		ParamAmount:       "50000000",
		ParamMerchantCode: "DEMO0001",
		ParamTxnRef:       "R1",
		ParamCurrency:     "VND",
		ParamVersion:      "2.1.0",
		ParamIPAddr:       "203.0.113.9",
		ParamBillEmail:    "jane@example.com",
		ParamCreateDate:   "20260102100405", // UTC+7
		ParamExpireDate:   "20260102101905",
		ParamIPNURL:       "https://api.example.com/api/v1/payments/webhook",
	}
	for k, want := range checks {
		if got := q.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}

	if q.Get(ParamSecureHash) != a.signer.signParams(q) {
		t.Error("signature does not cover the delivered parameters")
	}
}

func TestBuildPaymentURL_RejectsNonPending(t *testing.T) {
	t.Parallel()

	a := newTestHMACAdapter(t)
	o := testOrder()
	o.Status = models.OrderStatusCompleted
	if _, err := a.BuildPaymentURL(o, PaymentRequest{}); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("err = %v, want ErrInvalidOrder", err)
	}
}

func TestVerifySignature_Valid(t *testing.T) {
	t.Parallel()

	a := newTestHMACAdapter(t)
	p := settlementParams(testSecret, "DEMO0001", "R1", "50000000", "00")
	if v := a.VerifySignature(p); !v.Valid {
		t.Fatalf("expected valid, got %q", v.Reason)
	}

	// Hex case is not significant.
	p.Set(ParamSecureHash, strings.ToUpper(p.Get(ParamSecureHash)))
	if v := a.VerifySignature(p); !v.Valid {
		t.Fatalf("expected upper-case digest to verify, got %q", v.Reason)
	}
}

func TestVerifySignature_AnySingleMutationInvalidates(t *testing.T) {
	t.Parallel()

	a := newTestHMACAdapter(t)
	base := settlementParams(testSecret, "DEMO0001", "R1", "50000000", "00")

	for key := range base {
		if key == ParamSecureHash || key == ParamMerchantCode {
			continue
		}
		key := key
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			p := url.Values{}
			for k, v := range base {
				p[k] = append([]string(nil), v...)
			}
			p.Set(key, p.Get(key)+"1")
			if v := a.VerifySignature(p); v.Valid {
				t.Errorf("mutating %s must invalidate the signature", key)
			}
		})
	}

	added := url.Values{}
	for k, v := range base {
		added[k] = append([]string(nil), v...)
	}
	added.Set("vnp_Extra", "x")
	if v := a.VerifySignature(added); v.Valid {
		t.Error("adding a parameter must invalidate the signature")
	}
}

func TestVerifySignature_Rejections(t *testing.T) {
	t.Parallel()

	a := newTestHMACAdapter(t)

	tests := []struct {
		name   string
		params func() url.Values
		reason string
	}{
		{"missing signature", func() url.Values {
			p := settlementParams(testSecret, "DEMO0001", "R1", "100", "00")
			p.Del(ParamSecureHash)
			return p
		}, ReasonMissingSignature},
		{"missing reference", func() url.Values {
			p := settlementParams(testSecret, "DEMO0001", "R1", "100", "00")
			p.Del(ParamTxnRef)
			return p
		}, ReasonMissingField},
		{"non-numeric amount", func() url.Values {
			return settlementParams(testSecret, "DEMO0001", "R1", "12.5", "00")
		}, ReasonMalformed},
		{"foreign merchant", func() url.Values {
			return settlementParams(testSecret, "OTHER001", "R1", "100", "00")
		}, ReasonMerchantMismatch},
		{"wrong secret", func() url.Values {
			return settlementParams("some-other-secret", "DEMO0001", "R1", "100", "00")
		}, ReasonBadSignature},
		{"garbage digest", func() url.Values {
			p := settlementParams(testSecret, "DEMO0001", "R1", "100", "00")
			p.Set(ParamSecureHash, "not-hex")
			return p
		}, ReasonBadSignature},
		{"empty", func() url.Values { return url.Values{} }, ReasonMissingSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := a.VerifySignature(tt.params())
			if v.Valid {
				t.Fatal("expected invalid")
			}
			if !strings.HasPrefix(v.Reason, tt.reason) {
				t.Errorf("Reason = %q, want prefix %q", v.Reason, tt.reason)
			}
		})
	}
}

func TestParseEvent(t *testing.T) {
	t.Parallel()

	p := settlementParams(testSecret, "DEMO0001", "R1", "50000000", "00")
	ev, err := ParseEvent(p)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Amount() != 500000 {
		t.Errorf("Amount = %v, want 500000", ev.Amount())
	}
	if !ev.Succeeded() {
		t.Error("expected success")
	}
	md := ev.Metadata()
	if md[models.MetaBankCode] != "NCB" || md[models.MetaTransactionNo] != "14012345" {
		t.Errorf("metadata = %v", md)
	}

	failed := settlementParams(testSecret, "DEMO0001", "R1", "100", "24")
	ev, _ = ParseEvent(failed)
	if ev.Succeeded() || ev.FailureCode() != "24" {
		t.Errorf("expected failure 24, got succeeded=%v code=%s", ev.Succeeded(), ev.FailureCode())
	}

	// Response code success with a failed transaction status is a failure.
	mixed := settlementParams(testSecret, "DEMO0001", "R1", "100", "00")
	mixed.Set(ParamTransactionStatus, "02")
	ev, _ = ParseEvent(mixed)
	if ev.Succeeded() || ev.FailureCode() != "02" {
		t.Error("transaction status 02 must not count as success")
	}

	if _, err := ParseEvent(url.Values{}); !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("err = %v, want ErrMalformedEvent", err)
	}
}

func TestMinorUnits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount float64
		minor  int64
	}{
		{500000, 50000000},
		{19.99, 1999},
		{0.1 + 0.2, 30},
	}
	for _, tt := range tests {
		if got := ToMinorUnits(tt.amount); got != tt.minor {
			t.Errorf("ToMinorUnits(%v) = %d, want %d", tt.amount, got, tt.minor)
		}
	}
	if FromMinorUnits(1999) != 19.99 {
		t.Error("FromMinorUnits(1999) != 19.99")
	}
}

func TestNew_UnknownMode(t *testing.T) {
	t.Parallel()

	cfg := testGatewayConfig()
	cfg.Mode = "bypass"
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
