// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/coursepay/internal/audit"
	"github.com/tomtom215/coursepay/internal/auth"
	"github.com/tomtom215/coursepay/internal/authz"
	"github.com/tomtom215/coursepay/internal/catalog"
	"github.com/tomtom215/coursepay/internal/checkout"
	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/database"
	"github.com/tomtom215/coursepay/internal/gateway"
	"github.com/tomtom215/coursepay/internal/journal"
	"github.com/tomtom215/coursepay/internal/models"
	"github.com/tomtom215/coursepay/internal/provisioning"
	"github.com/tomtom215/coursepay/internal/settlement"
)

const (
	testJWTSecret = "api-test-secret-api-test-secret-0123"
	testReturnURL = "http://localhost:8080/api/v1/payments/return"
	testResultURL = "http://localhost:3000/payment/result"
)

// DuckDB in-memory instances are heavy; bound how many tests hold one.
var testDBSemaphore = make(chan struct{}, 4)

type testEnv struct {
	cfg     *config.Config
	db      *database.DB
	adapter *gateway.MockAdapter
	journal *journal.MemoryJournal
	audit   *audit.MemoryStore
	jwt     *auth.JWTManager
	server  http.Handler
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Environment:    "development",
			WebhookTimeout: 5 * time.Second,
			MaxBodyBytes:   8 << 10,
		},
		Gateway: config.GatewayConfig{
			Mode:              config.GatewayModeMock,
			Version:           "2.1.0",
			Command:           "pay",
			CurrencyCode:      "VND",
			Locale:            "vn",
			OrderType:         "other",
			TimeZone:          "UTC",
			ReturnURL:         testReturnURL,
			FrontendResultURL: testResultURL,
			MockPageURL:       "http://localhost:8080" + MockGatewayPath,
			ExpireMinutes:     15,
			AmountTolerance:   0.01,
		},
		Security: config.SecurityConfig{
			JWTSecret:         testJWTSecret,
			RateLimitDisabled: true,
		},
		Catalog: config.CatalogConfig{Products: []config.ProductConfig{
			{ID: "course-101", Name: "Intro to Go", Price: 250000},
			{ID: "course-102", Price: 99000},
			{ID: "course-201", Price: 120000},
			{ID: "course-301", Price: 50000},
			{ID: "course-401", Price: 250000},
			{ID: "course-501", Price: 250000},
			{ID: "course-701", Price: 250000},
			{ID: "course-801", Price: 1000},
			{ID: "course-901", Price: 350000},
			{ID: "course-902", Price: 1000},
		}},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	cfg := testConfig()
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB"})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	adapter := gateway.NewMockAdapter(&cfg.Gateway, time.UTC)
	j := journal.NewMemoryJournal(time.Hour)
	auditStore := audit.NewMemoryStore()

	prov := provisioning.New(db, &config.ProvisioningConfig{BreakerMaxFailures: 5, BreakerTimeout: time.Second})
	rec, err := settlement.New(settlement.Deps{
		Ledger:      db,
		Gateway:     adapter,
		Provisioner: prov,
		Journal:     j,
	}, cfg.Gateway.AmountTolerance)
	if err != nil {
		t.Fatalf("settlement.New: %v", err)
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	enforcer, err := authz.NewEnforcer(&cfg.Security)
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}

	prices := catalog.NewStatic(&cfg.Catalog, cfg.Gateway.CurrencyCode)
	handler := NewHandler(HandlerDeps{
		Config:            cfg,
		Orders:            db,
		Catalog:           prices,
		Gateway:           adapter,
		Settlement:        rec,
		Checkout:          checkout.New(db, prices, adapter, nil),
		Audit:             auditStore,
		EventsState:       func() string { return "closed" },
		ProvisioningState: prov.BreakerState,
		JournalReady:      true,
	})
	router := NewRouter(handler, NewChiMiddleware(ChiMiddlewareConfigFromSecurity(&cfg.Security)),
		jwtManager, authz.NewMiddleware(enforcer, nil), cfg.Server.MaxBodyBytes)

	return &testEnv{
		cfg:     cfg,
		db:      db,
		adapter: adapter,
		journal: j,
		audit:   auditStore,
		jwt:     jwtManager,
		server:  router.SetupChi(),
	}
}

func (e *testEnv) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := e.jwt.GenerateToken(userID, role)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) authed(t *testing.T, method, target, body, userID, role string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+e.token(t, userID, role))
	return e.do(req)
}

type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	if into != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, into); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

// checkoutOrder creates an order through the API and returns it with the
// signed outbound parameters.
func (e *testEnv) checkoutOrder(t *testing.T, payer, product string, amount float64) (*models.Order, url.Values) {
	t.Helper()
	body := `{"product_id":"` + product + `","amount":` + strconv.FormatFloat(amount, 'f', -1, 64) + `}`
	rec := e.authed(t, http.MethodPost, "/api/v1/orders", body, payer, auth.RoleStudent)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp models.CheckoutResponse
	decodeEnvelope(t, rec, &resp)

	u, err := url.Parse(resp.PaymentURL)
	if err != nil {
		t.Fatalf("parse payment URL: %v", err)
	}
	return resp.Order, u.Query()
}

func (e *testEnv) simulate(t *testing.T, outbound url.Values, code string) url.Values {
	t.Helper()
	event, err := e.adapter.Simulate(outbound, code)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	return event
}

func (e *testEnv) postWebhook(t *testing.T, params url.Values) settlement.Ack {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(params.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := e.do(req)
	return decodeAck(t, rec)
}

func decodeAck(t *testing.T, rec *httptest.ResponseRecorder) settlement.Ack {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var raw map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode ack %q: %v", rec.Body.String(), err)
	}
	if len(raw) != 2 {
		t.Errorf("ack has extra fields: %v", raw)
	}
	return settlement.Ack{RspCode: raw["RspCode"], Message: raw["Message"]}
}

func (e *testEnv) order(t *testing.T, ref string) *models.Order {
	t.Helper()
	o, err := e.db.GetOrderByReference(context.Background(), ref)
	if err != nil {
		t.Fatalf("GetOrderByReference(%s): %v", ref, err)
	}
	return o
}
