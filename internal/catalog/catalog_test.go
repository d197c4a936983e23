// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/coursepay/internal/config"
)

func TestStatic_Product(t *testing.T) {
	t.Parallel()

	c := NewStatic(&config.CatalogConfig{Products: []config.ProductConfig{
		{ID: "course-101", Name: "Intro to Go", Price: 250000},
		{ID: "course-102", Price: 19.5, Currency: "usd"},
		{ID: "course-101", Price: 1},
	}}, "VND")

	tests := []struct {
		id       string
		price    float64
		currency string
		wantErr  error
	}{
		{"course-101", 250000, "VND", nil},
		{"course-102", 19.5, "USD", nil},
		{"course-999", 0, "", ErrProductNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()
			p, err := c.Product(context.Background(), tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Product: %v", err)
			}
			if p.Price != tt.price || p.Currency != tt.currency {
				t.Errorf("product = %+v", p)
			}
		})
	}
}

func TestStatic_ProductReturnsCopy(t *testing.T) {
	t.Parallel()

	c := NewStatic(&config.CatalogConfig{Products: []config.ProductConfig{{ID: "course-101", Price: 250000}}}, "VND")
	p, _ := c.Product(context.Background(), "course-101")
	p.Price = 1

	again, _ := c.Product(context.Background(), "course-101")
	if again.Price != 250000 {
		t.Errorf("catalog price changed through a returned product: %v", again.Price)
	}
}

func TestStatic_ProductsKeepsConfigOrder(t *testing.T) {
	t.Parallel()

	c := NewStatic(&config.CatalogConfig{Products: []config.ProductConfig{
		{ID: "b", Price: 2}, {ID: "a", Price: 1}, {ID: "b", Price: 3},
	}}, "VND")
	got := c.Products()
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" || got[0].Price != 2 {
		t.Errorf("Products = %+v", got)
	}
}
