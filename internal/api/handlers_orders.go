// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/coursepay/internal/auth"
	"github.com/tomtom215/coursepay/internal/catalog"
	"github.com/tomtom215/coursepay/internal/checkout"
	"github.com/tomtom215/coursepay/internal/database"
	"github.com/tomtom215/coursepay/internal/gateway"
	"github.com/tomtom215/coursepay/internal/models"
)

// CreateOrder starts a purchase for the authenticated payer and returns the
// pending order with its hosted-page URL.
//
// @Summary Create an order
// @Description Opens a pending order at the catalog price. amount and currency are optional quotes and are rejected when they differ from the catalog.
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateOrderRequest true "Product to buy"
// @Success 201 {object} models.APIResponse{data=models.CheckoutResponse}
// @Failure 400 {object} models.APIResponse "Validation error"
// @Failure 404 {object} models.APIResponse "Unknown product"
// @Failure 409 {object} models.APIResponse "Already owned or price mismatch"
// @Router /orders [post]
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	var req models.CreateOrderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	payer := checkout.Payer{ID: claims.UserID(), IP: clientIP(r)}
	resp, err := h.checkout.Create(r.Context(), payer, &req)
	if err != nil {
		respondCheckoutError(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, resp)
}

// RetryOrder opens a new attempt for a failed order.
//
// @Summary Retry a failed order
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param ref path string true "Gateway reference of the failed order"
// @Param request body models.RetryOrderRequest false "Optional overrides"
// @Success 201 {object} models.APIResponse{data=models.CheckoutResponse}
// @Failure 404 {object} models.APIResponse "Order not found"
// @Failure 409 {object} models.APIResponse "Order not retryable"
// @Router /orders/{ref}/retry [post]
func (h *Handler) RetryOrder(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	var req models.RetryOrderRequest
	if r.ContentLength != 0 {
		if !decodeAndValidate(w, r, &req) {
			return
		}
	}

	payer := checkout.Payer{ID: claims.UserID(), IP: clientIP(r)}
	resp, err := h.checkout.Retry(r.Context(), payer, chi.URLParam(r, "ref"), &req)
	if err != nil {
		respondCheckoutError(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, resp)
}

// GetOrder returns one order to its payer or to an admin.
//
// @Summary Get an order
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param ref path string true "Gateway reference"
// @Success 200 {object} models.APIResponse{data=models.Order}
// @Failure 404 {object} models.APIResponse "Order not found"
// @Router /orders/{ref} [get]
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	order, err := h.orders.GetOrderByReference(r.Context(), chi.URLParam(r, "ref"))
	if errors.Is(err, database.ErrOrderNotFound) {
		respondError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order", err)
		return
	}
	// Someone else's order is reported as missing.
	if order.PayerID != claims.UserID() && claims.Role != auth.RoleAdmin {
		respondError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found", nil)
		return
	}
	respondSuccess(w, http.StatusOK, order)
}

const (
	defaultOrderListLimit = 50
	maxOrderListLimit     = 500
)

// ListOrders returns the caller's orders, newest first, with their settled
// purchase count. Admins may pass payer_id to read another payer's history.
//
// @Summary List orders
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param payer_id query string false "Payer to list (admin only)"
// @Param limit query int false "Maximum orders (1-500)" default(50)
// @Success 200 {object} models.APIResponse{data=models.OrderHistory}
// @Failure 403 {object} models.APIResponse "Another payer's history"
// @Router /orders [get]
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	payerID := claims.UserID()
	if other := r.URL.Query().Get("payer_id"); other != "" && other != payerID {
		if claims.Role != auth.RoleAdmin {
			respondError(w, http.StatusForbidden, "FORBIDDEN", "Cannot read another payer's orders", nil)
			return
		}
		payerID = other
	}
	limit := getIntParam(r, "limit", defaultOrderListLimit)
	if limit <= 0 || limit > maxOrderListLimit {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be between 1 and 500", nil)
		return
	}

	orders, err := h.orders.ListOrdersByPayer(r.Context(), payerID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list orders", err)
		return
	}
	purchases, err := h.orders.PayerPurchases(r.Context(), payerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read purchase count", err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	respondSuccess(w, http.StatusOK, models.OrderHistory{Orders: orders, Purchases: purchases})
}

func respondCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found", nil)
	case errors.Is(err, checkout.ErrPriceMismatch):
		respondError(w, http.StatusConflict, "PRICE_MISMATCH", "Quoted price does not match the catalog price", nil)
	case errors.Is(err, checkout.ErrAlreadyEntitled):
		respondError(w, http.StatusConflict, "ALREADY_ENTITLED", "You already own this course", nil)
	case errors.Is(err, checkout.ErrNotRetryable):
		respondError(w, http.StatusConflict, "NOT_RETRYABLE", "Only failed orders can be retried", nil)
	case errors.Is(err, checkout.ErrNotOwner), errors.Is(err, database.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found", nil)
	case errors.Is(err, gateway.ErrInvalidOrder):
		respondError(w, http.StatusUnprocessableEntity, "INVALID_ORDER", "Order cannot be paid", err)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create order", err)
	}
}
