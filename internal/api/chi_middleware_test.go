// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/coursepay/internal/config"
)

func TestChiMiddlewareConfigFromSecurity(t *testing.T) {
	cfg := ChiMiddlewareConfigFromSecurity(&config.SecurityConfig{
		CORSOrigins:     []string{"https://app.example"},
		RateLimitReqs:   7,
		RateLimitWindow: time.Second,
	})
	if cfg.RateLimitRequests != 7 || cfg.RateLimitWindow != time.Second {
		t.Errorf("rate limit = %d/%v", cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	if len(cfg.CORSAllowedOrigins) != 1 {
		t.Errorf("origins = %v", cfg.CORSAllowedOrigins)
	}

	defaults := ChiMiddlewareConfigFromSecurity(&config.SecurityConfig{})
	if defaults.RateLimitRequests != 100 || defaults.RateLimitWindow != time.Minute {
		t.Errorf("defaults = %d/%v", defaults.RateLimitRequests, defaults.RateLimitWindow)
	}
}

func TestRateLimitCustom(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	limited := NewChiMiddleware(DefaultChiMiddlewareConfig()).
		RateLimitCustom(RateLimitConfig{Requests: 2, Window: time.Minute})(ok)
	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}

	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	open := NewChiMiddleware(cfg).RateLimitCustom(RateLimitConfig{Requests: 1, Window: time.Minute})(ok)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("disabled limiter rejected request %d", i)
		}
	}
}

func TestAPISecurityHeaders(t *testing.T) {
	h := APISecurityHeaders()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	h.ServeHTTP(rec, req)

	for _, header := range []string{"X-Content-Type-Options", "X-Frame-Options", "Cache-Control", "Strict-Transport-Security"} {
		if rec.Header().Get(header) == "" {
			t.Errorf("missing %s", header)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.Security.CORSOrigins = []string{"https://app.example"}

	mw := NewChiMiddleware(ChiMiddlewareConfigFromSecurity(&cfg.Security))
	h := mw.CORS()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/orders", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Errorf("allow origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
