// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/coursepay/internal/logging"
	"github.com/tomtom215/coursepay/internal/models"
)

const healthPingTimeout = 2 * time.Second

// Health reports dependency health. It answers 200 even when degraded so
// that monitoring can read the body.
//
// @Summary Get service health
// @Description Ledger reachability, order counts by status, event and provisioning breaker states. Always 200; read status for degraded.
// @Tags Health
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.HealthStatus}
// @Router /health/ [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbOK := h.pingDB(r.Context())

	eventsState := "disabled"
	if h.eventsState != nil {
		eventsState = h.eventsState()
	}
	provState := "unknown"
	if h.provState != nil {
		provState = h.provState()
	}

	var counts map[models.OrderStatus]int64
	if dbOK {
		counts = h.countOrders(r.Context())
	}

	status := "healthy"
	if !dbOK || eventsState == "open" || provState == "open" {
		status = "degraded"
	}

	respondSuccess(w, http.StatusOK, models.HealthStatus{
		Status:            status,
		Database:          dbOK,
		Orders:            counts,
		EventsState:       eventsState,
		ProvisioningState: provState,
		GatewayMode:       h.adapter.Name(),
		JournalReady:      h.journalReady,
	})
}

// HealthLive reports that the process is serving.
//
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /health/live [get]
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"alive":          true,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady answers 503 until the ledger is reachable.
//
// @Summary Readiness check
// @Tags Health
// @Produce json
// @Success 200 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse "Order ledger unavailable"
// @Router /health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if !h.pingDB(r.Context()) {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "Order ledger unavailable", nil)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]bool{"ready": true})
}

func (h *Handler) pingDB(ctx context.Context) bool {
	if h.orders == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	return h.orders.Ping(ctx) == nil
}

func (h *Handler) countOrders(ctx context.Context) map[models.OrderStatus]int64 {
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	counts, err := h.orders.CountOrdersByStatus(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to count orders for health report")
		return nil
	}
	return counts
}
