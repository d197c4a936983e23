// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/coursepay/internal/audit"
	"github.com/tomtom215/coursepay/internal/auth"
	"github.com/tomtom215/coursepay/internal/breaker"
	"github.com/tomtom215/coursepay/internal/database"
	"github.com/tomtom215/coursepay/internal/provisioning"
	"github.com/tomtom215/coursepay/internal/settlement"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// ListProvisioningFailures returns the remediation queue, oldest first.
//
// @Summary List provisioning failures
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse{data=[]models.ProvisioningFailure}
// @Failure 503 {object} models.APIResponse "Remediation queue not configured"
// @Router /admin/provisioning-failures [get]
func (h *Handler) ListProvisioningFailures(w http.ResponseWriter, r *http.Request) {
	list, err := h.settlement.ProvisioningFailures(r.Context())
	if errors.Is(err, settlement.ErrNoJournal) {
		respondError(w, http.StatusServiceUnavailable, "REMEDIATION_UNAVAILABLE", "Remediation queue not configured", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list provisioning failures", err)
		return
	}
	respondSuccess(w, http.StatusOK, list)
}

// ResolveProvisioningFailure re-runs provisioning for a completed order and
// clears its remediation entry.
//
// @Summary Resolve a provisioning failure
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param ref path string true "Gateway reference"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse "Order not found"
// @Failure 409 {object} models.APIResponse "Order not completed"
// @Failure 503 {object} models.APIResponse "Provisioning unavailable"
// @Router /admin/provisioning-failures/{ref}/resolve [post]
func (h *Handler) ResolveProvisioningFailure(w http.ResponseWriter, r *http.Request) {
	actor := "unknown"
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		actor = claims.UserID()
	}

	res, err := h.settlement.ResolveProvisioningFailure(r.Context(), chi.URLParam(r, "ref"), actor)
	switch {
	case err == nil:
		respondSuccess(w, http.StatusOK, res)
	case errors.Is(err, database.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found", nil)
	case errors.Is(err, provisioning.ErrOrderNotSettled):
		respondError(w, http.StatusConflict, "ORDER_NOT_SETTLED", "Order is not completed", nil)
	case errors.Is(err, provisioning.ErrProvisioningFailed), breaker.IsOpen(err):
		respondError(w, http.StatusServiceUnavailable, "PROVISIONING_UNAVAILABLE", "Provisioning failed, try again later", err)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve provisioning failure", err)
	}
}

// AuditEvents queries the audit trail.
//
// Query parameters: type (comma-separated), gateway_ref, actor_id,
// since (RFC 3339) and limit.
//
// @Summary Query the audit trail
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param type query string false "Comma-separated event types"
// @Param gateway_ref query string false "Gateway reference"
// @Param actor_id query string false "Actor ID"
// @Param since query string false "RFC 3339 lower bound"
// @Param limit query int false "Maximum events (1-1000)" default(100)
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse "Invalid filter"
// @Router /admin/audit [get]
func (h *Handler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	if h.auditStore == nil {
		respondError(w, http.StatusServiceUnavailable, "AUDIT_UNAVAILABLE", "Audit trail not configured", nil)
		return
	}

	q := r.URL.Query()
	filter := audit.QueryFilter{
		GatewayRef: q.Get("gateway_ref"),
		ActorID:    q.Get("actor_id"),
		Limit:      getIntParam(r, "limit", defaultAuditLimit),
	}
	if filter.Limit <= 0 || filter.Limit > maxAuditLimit {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be between 1 and 1000", nil)
		return
	}
	for _, t := range parseCommaSeparated(q.Get("type")) {
		filter.Types = append(filter.Types, audit.EventType(t))
	}
	if since := q.Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "since must be an RFC 3339 timestamp", nil)
			return
		}
		filter.StartTime = &ts
	}

	list, err := h.auditStore.Query(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to query audit trail", err)
		return
	}
	respondSuccess(w, http.StatusOK, list)
}
