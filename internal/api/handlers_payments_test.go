// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/gateway"
	"github.com/tomtom215/coursepay/internal/logging"
	"github.com/tomtom215/coursepay/internal/models"
	"github.com/tomtom215/coursepay/internal/provisioning"
	"github.com/tomtom215/coursepay/internal/settlement"
)

func TestWebhook_HappyPathThenRedelivery(t *testing.T) {
	env := newTestEnv(t)
	order, outbound := env.checkoutOrder(t, "student-1", "course-101", 250000)
	event := env.simulate(t, outbound, gateway.ResponseCodeSuccess)

	ack := env.postWebhook(t, event)
	if ack.RspCode != "00" || ack.Message != "Confirm Success" {
		t.Fatalf("first delivery ack = %+v, want 00", ack)
	}
	if got := env.order(t, order.GatewayRef); got.Status != models.OrderStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	owned, err := env.db.HasEntitlement(context.Background(), "student-1", "course-101")
	if err != nil || !owned {
		t.Errorf("HasEntitlement = %v, %v", owned, err)
	}

	ack = env.postWebhook(t, event)
	if ack.RspCode != "02" {
		t.Errorf("redelivery ack = %+v, want 02", ack)
	}
	n, err := env.db.CountEntitlements(context.Background(), "student-1", "course-101")
	if err != nil || n != 1 {
		t.Errorf("entitlements = %d, %v; want exactly 1", n, err)
	}
}

func TestWebhook_DebugLogMasksSignature(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLogger(logging.NewTestLogger(&buf))
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { logging.Init(logging.DefaultConfig()) })

	env := newTestEnv(t)
	order, outbound := env.checkoutOrder(t, "student-1", "course-101", 250000)
	event := env.simulate(t, outbound, gateway.ResponseCodeSuccess)
	hash := event.Get(gateway.ParamSecureHash)

	if ack := env.postWebhook(t, event); ack.RspCode != "00" {
		t.Fatalf("ack = %+v", ack)
	}

	out := buf.String()
	if !strings.Contains(out, "Gateway notification received") {
		t.Fatalf("no debug line for the notification: %s", out)
	}
	if !strings.Contains(out, `"`+gateway.ParamTxnRef+`":"`+order.GatewayRef+`"`) {
		t.Errorf("parameters not logged: %s", out)
	}
	if hash == "" || strings.Contains(out, hash) {
		t.Errorf("signature logged in clear: %s", out)
	}
}

func TestWebhook_AcceptsQueryString(t *testing.T) {
	env := newTestEnv(t)
	_, outbound := env.checkoutOrder(t, "student-1", "course-102", 99000)
	event := env.simulate(t, outbound, gateway.ResponseCodeSuccess)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/payments/webhook?"+event.Encode(), nil))
	if ack := decodeAck(t, rec); ack.RspCode != "00" {
		t.Errorf("ack = %+v, want 00", ack)
	}
}

func TestWebhook_AckCodes(t *testing.T) {
	env := newTestEnv(t)
	order, outbound := env.checkoutOrder(t, "student-2", "course-201", 120000)
	valid := env.simulate(t, outbound, gateway.ResponseCodeSuccess)

	forged := url.Values{}
	for k, v := range valid {
		forged[k] = append([]string(nil), v...)
	}
	forged.Set(gateway.ParamAmount, "100")

	unknown := env.adapter.SignForTest(url.Values{
		gateway.ParamMerchantCode: {gateway.MockMerchantCode},
		gateway.ParamTxnRef:       {"20260101000000AAAAAAAAAAAAAAAA"},
		gateway.ParamAmount:       {"12000000"},
		gateway.ParamResponseCode: {"00"},
	})

	tampered := env.adapter.SignForTest(url.Values{
		gateway.ParamMerchantCode: {gateway.MockMerchantCode},
		gateway.ParamTxnRef:       {order.GatewayRef},
		gateway.ParamAmount:       {"100"},
		gateway.ParamResponseCode: {"00"},
	})

	tests := []struct {
		name   string
		params url.Values
		want   string
	}{
		{"forged", forged, "97"},
		{"unsigned", url.Values{gateway.ParamTxnRef: {order.GatewayRef}}, "97"},
		{"empty", url.Values{}, "97"},
		{"unknown order", unknown, "01"},
		{"amount tampered", tampered, "04"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ack := env.postWebhook(t, tt.params); ack.RspCode != tt.want {
				t.Errorf("ack = %+v, want %s", ack, tt.want)
			}
		})
	}

	if got := env.order(t, order.GatewayRef); got.Status != models.OrderStatusPending {
		t.Errorf("rejected deliveries changed status to %s", got.Status)
	}
	if ack := env.postWebhook(t, valid); ack.RspCode != "00" {
		t.Errorf("genuine delivery after rejections = %+v, want 00", ack)
	}
}

func TestWebhook_DeclinedPaymentAcknowledged(t *testing.T) {
	env := newTestEnv(t)
	order, outbound := env.checkoutOrder(t, "student-3", "course-301", 50000)

	ack := env.postWebhook(t, env.simulate(t, outbound, mockCodeCanceled))
	if ack.RspCode != "00" {
		t.Fatalf("declined ack = %+v, want 00", ack)
	}
	if got := env.order(t, order.GatewayRef); got.Status != models.OrderStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if owned, _ := env.db.HasEntitlement(context.Background(), "student-3", "course-301"); owned {
		t.Error("declined payment granted an entitlement")
	}
}

func TestWebhook_OversizedBody(t *testing.T) {
	env := newTestEnv(t)
	body := "vnp_TxnRef=" + strings.Repeat("A", int(env.cfg.Server.MaxBodyBytes)+1)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if ack := decodeAck(t, env.do(req)); ack.RspCode != "99" {
		t.Errorf("ack = %+v, want retryable 99", ack)
	}
}

// blockingLedger holds every lookup until the caller gives up.
type blockingLedger struct{}

func (blockingLedger) GetOrderByReference(ctx context.Context, _ string) (*models.Order, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingLedger) TransitionOrder(context.Context, models.Transition) error { return nil }

func (blockingLedger) AnnotateOrder(context.Context, string, map[string]string) error { return nil }

type noopProvisioner struct{}

func (noopProvisioner) Provision(context.Context, *models.Order) (*provisioning.Result, error) {
	return &provisioning.Result{}, nil
}

func TestWebhook_TimeoutIsRetryable(t *testing.T) {
	cfg := testConfig()
	cfg.Server.WebhookTimeout = 50 * time.Millisecond
	adapter := gateway.NewMockAdapter(&cfg.Gateway, time.UTC)

	rec, err := settlement.New(settlement.Deps{
		Ledger:      blockingLedger{},
		Gateway:     adapter,
		Provisioner: noopProvisioner{},
	}, 0)
	if err != nil {
		t.Fatalf("settlement.New: %v", err)
	}
	h := NewHandler(HandlerDeps{Config: cfg, Gateway: adapter, Settlement: rec})

	event := adapter.SignForTest(url.Values{
		gateway.ParamMerchantCode: {gateway.MockMerchantCode},
		gateway.ParamTxnRef:       {"20260101000000BBBBBBBBBBBBBBBB"},
		gateway.ParamAmount:       {"100000"},
		gateway.ParamResponseCode: {"00"},
	})

	start := time.Now()
	w := httptest.NewRecorder()
	h.Webhook(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments/webhook?"+event.Encode(), nil))

	if ack := decodeAck(t, w); ack.RspCode != "99" {
		t.Errorf("ack = %+v, want 99", ack)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("webhook took %v, timeout not honoured", elapsed)
	}
}

func TestReturn_RedirectsWithoutMutating(t *testing.T) {
	env := newTestEnv(t)
	order, outbound := env.checkoutOrder(t, "student-4", "course-401", 250000)
	event := env.simulate(t, outbound, gateway.ResponseCodeSuccess)
	before := env.order(t, order.GatewayRef)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/payments/return?"+event.Encode(), nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	if !strings.HasPrefix(loc.String(), testResultURL) {
		t.Errorf("redirect to %s, want %s", loc, testResultURL)
	}
	q := loc.Query()
	want := map[string]string{
		"orderRef":      order.GatewayRef,
		"amount":        "250000",
		"responseCode":  "00",
		"transactionNo": event.Get(gateway.ParamTransactionNo),
		"bankCode":      event.Get(gateway.ParamBankCode),
		"productId":     "course-401",
		"success":       "true",
		"verified":      "true",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, q.Get(k), v)
		}
	}

	// The return endpoint never settles, even for a valid success event.
	got := env.order(t, order.GatewayRef)
	if got.Status != models.OrderStatusPending || !got.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("return endpoint mutated order: status %s updated %v", got.Status, got.UpdatedAt)
	}
	if owned, _ := env.db.HasEntitlement(context.Background(), "student-4", "course-401"); owned {
		t.Error("return endpoint granted an entitlement")
	}
}

func TestReturn_TamperedIsUnverified(t *testing.T) {
	env := newTestEnv(t)
	_, outbound := env.checkoutOrder(t, "student-5", "course-501", 250000)
	event := env.simulate(t, outbound, gateway.ResponseCodeSuccess)
	event.Set(gateway.ParamResponseCode, "00")
	event.Set(gateway.ParamAmount, "1")

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/payments/return?"+event.Encode(), nil))
	loc, _ := url.Parse(rec.Header().Get("Location"))
	q := loc.Query()
	if q.Get("verified") != "false" || q.Get("success") != "false" {
		t.Errorf("verified=%s success=%s, want false/false", q.Get("verified"), q.Get("success"))
	}
	if q.Get("productId") != "" {
		t.Errorf("unverified return leaked productId %q", q.Get("productId"))
	}
}

func TestResultURL_KeepsExistingQuery(t *testing.T) {
	cfg := &config.Config{Gateway: config.GatewayConfig{FrontendResultURL: "https://app.example/result?src=pay"}}
	h := &Handler{cfg: cfg}
	got, err := url.Parse(h.resultURL(url.Values{"orderRef": {"R1"}}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Query().Get("src") != "pay" || got.Query().Get("orderRef") != "R1" {
		t.Errorf("resultURL = %s", got)
	}
}
