// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/tomtom215/coursepay/internal/auth"
	"github.com/tomtom215/coursepay/internal/gateway"
	"github.com/tomtom215/coursepay/internal/models"
)

func TestOrders_RequireAuthentication(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing product", `{"amount":1000}`, http.StatusBadRequest},
		{"negative amount", `{"product_id":"c1","amount":-5}`, http.StatusBadRequest},
		{"bad product id", `{"product_id":"c 1/../x","amount":1000}`, http.StatusBadRequest},
		{"unknown field", `{"product_id":"c1","amount":1000,"status":"completed"}`, http.StatusBadRequest},
		{"not json", `product_id=c1`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.authed(t, http.MethodPost, "/api/v1/orders", tt.body, "student-1", auth.RoleStudent)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if env := decodeEnvelope(t, rec, nil); env.Error == nil {
				t.Error("missing error body")
			}
		})
	}
}

func TestCreateOrder_ReturnsPendingOrderAndURL(t *testing.T) {
	env := newTestEnv(t)
	order, outbound := env.checkoutOrder(t, "student-1", "course-101", 250000)

	if order.Status != models.OrderStatusPending || order.PayerID != "student-1" {
		t.Errorf("order = %+v", order)
	}
	if outbound.Get(gateway.ParamTxnRef) != order.GatewayRef {
		t.Errorf("payment URL ref = %s, want %s", outbound.Get(gateway.ParamTxnRef), order.GatewayRef)
	}
	if outbound.Get(gateway.ParamIPAddr) != "192.0.2.1" {
		t.Errorf("payer IP = %q", outbound.Get(gateway.ParamIPAddr))
	}
}

func TestCreateOrder_AlreadyEntitled(t *testing.T) {
	env := newTestEnv(t)
	_, outbound := env.checkoutOrder(t, "student-1", "course-101", 250000)
	if ack := env.postWebhook(t, env.simulate(t, outbound, gateway.ResponseCodeSuccess)); ack.RspCode != "00" {
		t.Fatalf("settle: %+v", ack)
	}

	rec := env.authed(t, http.MethodPost, "/api/v1/orders", `{"product_id":"course-101","amount":250000}`, "student-1", auth.RoleStudent)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if e := decodeEnvelope(t, rec, nil); e.Error == nil || e.Error.Code != "ALREADY_ENTITLED" {
		t.Errorf("error = %+v", e.Error)
	}
}

func TestRetryOrder_FailedThenRetry(t *testing.T) {
	env := newTestEnv(t)
	first, outbound := env.checkoutOrder(t, "student-1", "course-101", 250000)
	firstEvent := env.simulate(t, outbound, mockCodeCanceled)

	// Pending orders cannot be retried.
	rec := env.authed(t, http.MethodPost, "/api/v1/orders/"+first.GatewayRef+"/retry", "", "student-1", auth.RoleStudent)
	if rec.Code != http.StatusConflict {
		t.Fatalf("retry of pending order: status %d, want 409", rec.Code)
	}

	if ack := env.postWebhook(t, firstEvent); ack.RspCode != "00" {
		t.Fatalf("decline: %+v", ack)
	}

	// Only the owner may retry.
	rec = env.authed(t, http.MethodPost, "/api/v1/orders/"+first.GatewayRef+"/retry", "", "student-2", auth.RoleStudent)
	if rec.Code != http.StatusNotFound {
		t.Errorf("retry by another payer: status %d, want 404", rec.Code)
	}

	rec = env.authed(t, http.MethodPost, "/api/v1/orders/"+first.GatewayRef+"/retry", `{"bank_code":"NCB"}`, "student-1", auth.RoleStudent)
	if rec.Code != http.StatusCreated {
		t.Fatalf("retry: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp models.CheckoutResponse
	decodeEnvelope(t, rec, &resp)
	if resp.Order.GatewayRef == first.GatewayRef || resp.Order.RetryAttempt != 1 {
		t.Errorf("retry order = %+v", resp.Order)
	}

	u, _ := url.Parse(resp.PaymentURL)
	if ack := env.postWebhook(t, env.simulate(t, u.Query(), gateway.ResponseCodeSuccess)); ack.RspCode != "00" {
		t.Fatalf("settle retry: %+v", ack)
	}
	if got := env.order(t, resp.Order.GatewayRef); got.Status != models.OrderStatusCompleted {
		t.Errorf("retry status = %s", got.Status)
	}
	if got := env.order(t, first.GatewayRef); got.Status != models.OrderStatusFailed {
		t.Errorf("first attempt status = %s, want failed", got.Status)
	}

	// A late success for the first attempt is already processed.
	late := env.adapter.SignForTest(url.Values{
		gateway.ParamMerchantCode: {gateway.MockMerchantCode},
		gateway.ParamTxnRef:       {first.GatewayRef},
		gateway.ParamAmount:       {outbound.Get(gateway.ParamAmount)},
		gateway.ParamResponseCode: {"00"},
	})
	if ack := env.postWebhook(t, late); ack.RspCode != "02" {
		t.Errorf("late delivery ack = %+v, want 02", ack)
	}
}

func TestGetOrder_OwnerOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	order, _ := env.checkoutOrder(t, "student-1", "course-101", 250000)
	path := "/api/v1/orders/" + order.GatewayRef

	tests := []struct {
		name   string
		userID string
		role   string
		want   int
	}{
		{"owner", "student-1", auth.RoleStudent, http.StatusOK},
		{"other student", "student-2", auth.RoleStudent, http.StatusNotFound},
		{"admin", "ops-1", auth.RoleAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.authed(t, http.MethodGet, path, "", tt.userID, tt.role)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK {
				var got models.Order
				decodeEnvelope(t, rec, &got)
				if got.GatewayRef != order.GatewayRef {
					t.Errorf("ref = %s", got.GatewayRef)
				}
			}
		})
	}

	rec := env.authed(t, http.MethodGet, "/api/v1/orders/does-not-exist", "", "student-1", auth.RoleStudent)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown ref: status %d", rec.Code)
	}
}

func TestCreateOrder_ChargesCatalogPrice(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name     string
		body     string
		want     int
		wantCode string
	}{
		{"amount omitted", `{"product_id":"course-101"}`, http.StatusCreated, ""},
		{"quote matches", `{"product_id":"course-102","amount":99000}`, http.StatusCreated, ""},
		{"quote below price", `{"product_id":"course-201","amount":1}`, http.StatusConflict, "PRICE_MISMATCH"},
		{"unknown product", `{"product_id":"course-999"}`, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.authed(t, http.MethodPost, "/api/v1/orders", tt.body, "student-6", auth.RoleStudent)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.wantCode != "" {
				if e := decodeEnvelope(t, rec, nil); e.Error == nil || e.Error.Code != tt.wantCode {
					t.Errorf("error = %+v, want %s", e.Error, tt.wantCode)
				}
				return
			}
			var resp models.CheckoutResponse
			decodeEnvelope(t, rec, &resp)
			p, _ := url.Parse(resp.PaymentURL)
			want := map[string]float64{"course-101": 250000, "course-102": 99000}[resp.Order.ProductID]
			if resp.Order.Amount != want || p.Query().Get(gateway.ParamAmount) != strconv.FormatInt(int64(want)*100, 10) {
				t.Errorf("charged %.2f (%s), want catalog price %.2f", resp.Order.Amount, p.Query().Get(gateway.ParamAmount), want)
			}
		})
	}

	// Nothing was stored for the rejected quote.
	var history models.OrderHistory
	decodeEnvelope(t, env.authed(t, http.MethodGet, "/api/v1/orders", "", "student-6", auth.RoleStudent), &history)
	for _, o := range history.Orders {
		if o.ProductID == "course-201" {
			t.Errorf("rejected quote created order %+v", o)
		}
	}
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(t)
	_, outbound := env.checkoutOrder(t, "student-1", "course-101", 250000)
	env.checkoutOrder(t, "student-1", "course-102", 99000)
	env.checkoutOrder(t, "student-2", "course-201", 120000)
	if ack := env.postWebhook(t, env.simulate(t, outbound, gateway.ResponseCodeSuccess)); ack.RspCode != "00" {
		t.Fatalf("settle: %+v", ack)
	}

	rec := env.authed(t, http.MethodGet, "/api/v1/orders", "", "student-1", auth.RoleStudent)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	var history models.OrderHistory
	decodeEnvelope(t, rec, &history)
	if len(history.Orders) != 2 || history.Purchases != 1 {
		t.Errorf("history = %d orders, %d purchases; want 2 and 1", len(history.Orders), history.Purchases)
	}
	for _, o := range history.Orders {
		if o.PayerID != "student-1" {
			t.Errorf("foreign order in history: %+v", o)
		}
	}

	tests := []struct {
		name   string
		target string
		userID string
		role   string
		want   int
	}{
		{"student reads other payer", "/api/v1/orders?payer_id=student-2", "student-1", auth.RoleStudent, http.StatusForbidden},
		{"admin reads other payer", "/api/v1/orders?payer_id=student-2", "ops-1", auth.RoleAdmin, http.StatusOK},
		{"limit too large", "/api/v1/orders?limit=10000", "student-1", auth.RoleStudent, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.authed(t, http.MethodGet, tt.target, "", tt.userID, tt.role); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	var empty models.OrderHistory
	decodeEnvelope(t, env.authed(t, http.MethodGet, "/api/v1/orders", "", "student-9", auth.RoleStudent), &empty)
	if empty.Orders == nil || len(empty.Orders) != 0 || empty.Purchases != 0 {
		t.Errorf("empty history = %+v", empty)
	}
}
