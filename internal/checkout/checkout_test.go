// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package checkout

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/coursepay/internal/catalog"
	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/database"
	"github.com/tomtom215/coursepay/internal/gateway"
	"github.com/tomtom215/coursepay/internal/models"
)

type memStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	owned  map[string]bool
	// dupes makes the next n CreateOrder calls collide.
	dupes int
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[string]*models.Order), owned: make(map[string]bool)}
}

func (s *memStore) CreateOrder(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dupes > 0 {
		s.dupes--
		return database.ErrDuplicateReference
	}
	if _, ok := s.orders[o.GatewayRef]; ok {
		return database.ErrDuplicateReference
	}
	c := *o
	s.orders[o.GatewayRef] = &c
	return nil
}

func (s *memStore) GetOrderByReference(_ context.Context, ref string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[ref]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	c := *o
	return &c, nil
}

func (s *memStore) HasEntitlement(_ context.Context, payerID, productID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owned[payerID+"/"+productID], nil
}

func (s *memStore) setStatus(ref string, st models.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[ref].Status = st
}

func newService(t *testing.T, store Store) *Service {
	t.Helper()
	adapter, err := gateway.New(&config.GatewayConfig{
		Mode:          config.GatewayModeHMAC,
		MerchantCode:  "DEMO0001",
		HashSecret:    "CHECKOUTSECRETCHECKOUTSECRET1234",
		BaseURL:       "https://sandbox.gateway.example/pay",
		Version:       "2.1.0",
		Command:       "pay",
		CurrencyCode:  "VND",
		Locale:        "vn",
		OrderType:     "other",
		TimeZone:      "Asia/Ho_Chi_Minh",
		ReturnURL:     "https://api.example.com/api/v1/payments/return",
		CallbackURL:   "https://api.example.com/api/v1/payments/webhook",
		ExpireMinutes: 15,
	})
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}
	prices := catalog.NewStatic(&config.CatalogConfig{Products: []config.ProductConfig{
		{ID: "course-101", Name: "Intro to Go", Price: 500000},
		{ID: "course-102", Price: 1000},
	}}, "VND")
	s := New(store, prices, adapter, nil)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestCreate_OpensPendingOrder(t *testing.T) {
	store := newMemStore()
	s := newService(t, store)

	resp, err := s.Create(context.Background(), Payer{ID: "payer-1", IP: "203.0.113.9"}, &models.CreateOrderRequest{
		ProductID: "course-101",
		Amount:    500000,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	o := resp.Order
	if o.Status != models.OrderStatusPending || o.Currency != "VND" || o.PaymentMethod != "gateway" {
		t.Errorf("order = %+v", o)
	}
	if !strings.HasPrefix(o.GatewayRef, "20260102030405") || len(o.GatewayRef) != 30 {
		t.Errorf("reference = %q", o.GatewayRef)
	}
	if _, err := store.GetOrderByReference(context.Background(), o.GatewayRef); err != nil {
		t.Errorf("order not stored: %v", err)
	}

	u, err := url.Parse(resp.PaymentURL)
	if err != nil {
		t.Fatalf("payment url: %v", err)
	}
	q := u.Query()
	if q.Get(gateway.ParamTxnRef) != o.GatewayRef || q.Get(gateway.ParamAmount) != "50000000" || q.Get(gateway.ParamIPAddr) != "203.0.113.9" {
		t.Errorf("payment url query = %v", q)
	}
}

func TestCreate_PriceComesFromCatalog(t *testing.T) {
	ctx := context.Background()
	payer := Payer{ID: "payer-1"}

	tests := []struct {
		name    string
		req     models.CreateOrderRequest
		wantErr error
	}{
		{"amount omitted", models.CreateOrderRequest{ProductID: "course-101"}, nil},
		{"matching quote", models.CreateOrderRequest{ProductID: "course-101", Amount: 500000, Currency: "VND"}, nil},
		{"lower quote", models.CreateOrderRequest{ProductID: "course-101", Amount: 1}, ErrPriceMismatch},
		{"higher quote", models.CreateOrderRequest{ProductID: "course-101", Amount: 900000}, ErrPriceMismatch},
		{"other currency", models.CreateOrderRequest{ProductID: "course-101", Amount: 500000, Currency: "USD"}, ErrPriceMismatch},
		{"unknown product", models.CreateOrderRequest{ProductID: "course-999", Amount: 1}, catalog.ErrProductNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			s := newService(t, store)

			resp, err := s.Create(ctx, payer, &tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if len(store.orders) != 0 {
					t.Errorf("rejected quote stored %d orders", len(store.orders))
				}
				return
			}
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if resp.Order.Amount != 500000 || resp.Order.Currency != "VND" {
				t.Errorf("order priced at %.2f %s, want catalog 500000 VND", resp.Order.Amount, resp.Order.Currency)
			}
			u, _ := url.Parse(resp.PaymentURL)
			if got := u.Query().Get(gateway.ParamAmount); got != "50000000" {
				t.Errorf("gateway amount = %s, want 50000000", got)
			}
		})
	}
}

func TestCreate_ReferencesAreUnique(t *testing.T) {
	s := newService(t, newMemStore())
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		resp, err := s.Create(context.Background(), Payer{ID: "payer-1"}, &models.CreateOrderRequest{ProductID: "course-101"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[resp.Order.GatewayRef] {
			t.Fatalf("duplicate reference %s", resp.Order.GatewayRef)
		}
		seen[resp.Order.GatewayRef] = true
	}
}

func TestCreate_RegeneratesCollidingReference(t *testing.T) {
	store := newMemStore()
	store.dupes = 2
	s := newService(t, store)

	if _, err := s.Create(context.Background(), Payer{ID: "payer-1"}, &models.CreateOrderRequest{ProductID: "course-101"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	store.dupes = maxReferenceAttempts
	_, err := s.Create(context.Background(), Payer{ID: "payer-1"}, &models.CreateOrderRequest{ProductID: "course-102", Amount: 1000})
	if !errors.Is(err, database.ErrDuplicateReference) {
		t.Errorf("err = %v, want ErrDuplicateReference", err)
	}
}

func TestCreate_RefusesOwnedProduct(t *testing.T) {
	store := newMemStore()
	store.owned["payer-1/course-101"] = true
	s := newService(t, store)

	_, err := s.Create(context.Background(), Payer{ID: "payer-1"}, &models.CreateOrderRequest{ProductID: "course-101"})
	if !errors.Is(err, ErrAlreadyEntitled) {
		t.Errorf("err = %v, want ErrAlreadyEntitled", err)
	}
}

func TestRetry(t *testing.T) {
	store := newMemStore()
	s := newService(t, store)
	ctx := context.Background()
	payer := Payer{ID: "payer-1", IP: "198.51.100.4"}

	first, err := s.Create(ctx, payer, &models.CreateOrderRequest{ProductID: "course-101", Amount: 500000})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ref := first.Order.GatewayRef

	if _, err := s.Retry(ctx, payer, ref, nil); !errors.Is(err, ErrNotRetryable) {
		t.Errorf("retry of pending order: err = %v, want ErrNotRetryable", err)
	}

	store.setStatus(ref, models.OrderStatusFailed)

	if _, err := s.Retry(ctx, Payer{ID: "payer-2"}, ref, nil); !errors.Is(err, ErrNotOwner) {
		t.Errorf("foreign retry: err = %v, want ErrNotOwner", err)
	}

	second, err := s.Retry(ctx, payer, ref, &models.RetryOrderRequest{BankCode: "NCB"})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	o := second.Order
	if o.GatewayRef == ref || o.RetryAttempt != 1 || o.Amount != 500000 || o.ProductID != "course-101" {
		t.Errorf("retry order = %+v", o)
	}
	if o.Status != models.OrderStatusPending {
		t.Errorf("retry status = %s", o.Status)
	}

	// The failed attempt is left untouched.
	prev, _ := store.GetOrderByReference(ctx, ref)
	if prev.Status != models.OrderStatusFailed {
		t.Errorf("previous status = %s, want failed", prev.Status)
	}

	if _, err := s.Retry(ctx, payer, "missing", nil); !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}
