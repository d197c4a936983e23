// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package gateway

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/tomtom215/coursepay/internal/config"
)

func newTestMockAdapter(t *testing.T) *MockAdapter {
	t.Helper()
	cfg := testGatewayConfig()
	cfg.Mode = config.GatewayModeMock
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m, ok := a.(*MockAdapter)
	if !ok {
		t.Fatalf("expected *MockAdapter, got %T", a)
	}
	return m
}

func TestMockAdapter_SimulateRoundTrip(t *testing.T) {
	t.Parallel()

	m := newTestMockAdapter(t)
	raw, err := m.BuildPaymentURL(testOrder(), PaymentRequest{})
	if err != nil {
		t.Fatalf("BuildPaymentURL: %v", err)
	}
	if !strings.HasPrefix(raw, "http://localhost:8080/mock-gateway/pay?") {
		t.Fatalf("unexpected mock URL %s", raw)
	}

	u, _ := url.Parse(raw)
	event, err := m.Simulate(u.Query(), ResponseCodeSuccess)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if v := m.VerifySignature(event); !v.Valid {
		t.Fatalf("simulated event must verify, got %q", v.Reason)
	}
	if event.Get(ParamAmount) != "50000000" || event.Get(ParamTxnRef) != "R1" {
		t.Errorf("event = %v", event)
	}
}

func TestMockAdapter_RejectsForeignOutbound(t *testing.T) {
	t.Parallel()

	m := newTestMockAdapter(t)
	h := newTestHMACAdapter(t)

	raw, err := h.BuildPaymentURL(testOrder(), PaymentRequest{})
	if err != nil {
		t.Fatalf("BuildPaymentURL: %v", err)
	}
	u, _ := url.Parse(raw)
	if _, err := m.Simulate(u.Query(), ResponseCodeSuccess); !errors.Is(err, ErrNotMockPayment) {
		t.Errorf("err = %v, want ErrNotMockPayment", err)
	}
}

func TestAdapters_DoNotCrossVerify(t *testing.T) {
	t.Parallel()

	m := newTestMockAdapter(t)
	h := newTestHMACAdapter(t)

	realEvent := settlementParams(testSecret, "DEMO0001", "R1", "100", "00")
	if v := m.VerifySignature(realEvent); v.Valid {
		t.Error("mock adapter accepted a real gateway signature")
	}

	mock := m.SignForTest(settlementParams(testSecret, MockMerchantCode, "R1", "100", "00"))
	if v := h.VerifySignature(mock); v.Valid {
		t.Error("real adapter accepted a mock signature")
	}

	// Even with the real merchant code the mock key must not pass.
	forged := m.SignForTest(settlementParams(testSecret, "DEMO0001", "R1", "100", "00"))
	if v := h.VerifySignature(forged); v.Valid {
		t.Error("real adapter accepted a mock-keyed signature")
	}
}
