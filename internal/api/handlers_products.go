// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/coursepay/internal/catalog"
)

// ProductInfo is a catalog entry with its settled purchase count.
type ProductInfo struct {
	catalog.Product
	Purchases int64 `json:"purchases"`
}

// ListProducts returns the catalog.
//
// @Summary List catalog products
// @Tags Catalog
// @Produce json
// @Success 200 {object} models.APIResponse{data=[]catalog.Product}
// @Router /products [get]
func (h *Handler) ListProducts(w http.ResponseWriter, _ *http.Request) {
	if h.catalog == nil {
		respondSuccess(w, http.StatusOK, []catalog.Product{})
		return
	}
	respondSuccess(w, http.StatusOK, h.catalog.Products())
}

// GetProduct returns one catalog entry and how many times it was bought.
//
// @Summary Get a catalog product
// @Tags Catalog
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} models.APIResponse{data=api.ProductInfo}
// @Failure 404 {object} models.APIResponse "Product not found"
// @Router /products/{id} [get]
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		respondError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found", nil)
		return
	}
	p, err := h.catalog.Product(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load product", err)
		return
	}
	n, err := h.orders.ProductPurchases(r.Context(), p.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read purchase count", err)
		return
	}
	respondSuccess(w, http.StatusOK, ProductInfo{Product: *p, Purchases: n})
}
