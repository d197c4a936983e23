// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

// Package catalog resolves the products payers can buy and what they cost.
//
// The catalog is the only source of the amount an order is created for.
// Checkout requests name a product; the price comes from here.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/tomtom215/coursepay/internal/config"
)

// ErrProductNotFound is returned for ids the catalog does not list.
var ErrProductNotFound = errors.New("product not found")

// Product is a purchasable course.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// PriceSource resolves products by id. *Static satisfies it.
type PriceSource interface {
	Product(ctx context.Context, id string) (*Product, error)
}

// Static is an immutable catalog loaded from configuration.
type Static struct {
	byID  map[string]Product
	order []string
}

// NewStatic builds a catalog from cfg. Products without a currency get
// defaultCurrency. Later duplicates of an id are ignored; configuration
// validation rejects them before this runs.
func NewStatic(cfg *config.CatalogConfig, defaultCurrency string) *Static {
	s := &Static{byID: make(map[string]Product, len(cfg.Products))}
	for _, p := range cfg.Products {
		if _, ok := s.byID[p.ID]; ok {
			continue
		}
		currency := strings.ToUpper(p.Currency)
		if currency == "" {
			currency = defaultCurrency
		}
		s.byID[p.ID] = Product{ID: p.ID, Name: p.Name, Price: p.Price, Currency: currency}
		s.order = append(s.order, p.ID)
	}
	return s
}

// Product returns a copy of the product with id.
func (s *Static) Product(_ context.Context, id string) (*Product, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

// Products returns every product in configuration order.
func (s *Static) Products() []Product {
	out := make([]Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
