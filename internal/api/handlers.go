// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package api

import (
	"context"
	"time"

	"github.com/tomtom215/coursepay/internal/audit"
	"github.com/tomtom215/coursepay/internal/catalog"
	"github.com/tomtom215/coursepay/internal/checkout"
	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/gateway"
	"github.com/tomtom215/coursepay/internal/models"
	"github.com/tomtom215/coursepay/internal/settlement"
)

// OrderReader is the read-only ledger surface the handlers use. The return
// endpoint must only ever see this interface.
type OrderReader interface {
	GetOrderByReference(ctx context.Context, ref string) (*models.Order, error)
	ListOrdersByPayer(ctx context.Context, payerID string, limit int) ([]*models.Order, error)
	CountOrdersByStatus(ctx context.Context) (map[models.OrderStatus]int64, error)
	PayerPurchases(ctx context.Context, payerID string) (int64, error)
	ProductPurchases(ctx context.Context, productID string) (int64, error)
	Ping(ctx context.Context) error
}

// HandlerDeps collects Handler collaborators. Audit, EventsState and
// ProvisioningState may be nil.
type HandlerDeps struct {
	Config     *config.Config
	Orders     OrderReader
	Catalog    *catalog.Static
	Gateway    gateway.Adapter
	Settlement *settlement.Reconciler
	Checkout   *checkout.Service
	Audit      audit.Store

	// EventsState reports the event publisher breaker state for health output.
	EventsState func() string

	// ProvisioningState reports the entitlement-store breaker state.
	ProvisioningState func() string

	JournalReady bool
}

// Handler holds the HTTP handlers.
type Handler struct {
	cfg          *config.Config
	orders       OrderReader
	catalog      *catalog.Static
	adapter      gateway.Adapter
	settlement   *settlement.Reconciler
	checkout     *checkout.Service
	auditStore   audit.Store
	eventsState  func() string
	provState    func() string
	journalReady bool
	startTime    time.Time
}

// NewHandler creates a Handler.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		cfg:          deps.Config,
		orders:       deps.Orders,
		catalog:      deps.Catalog,
		adapter:      deps.Gateway,
		settlement:   deps.Settlement,
		checkout:     deps.Checkout,
		auditStore:   deps.Audit,
		eventsState:  deps.EventsState,
		provState:    deps.ProvisioningState,
		journalReady: deps.JournalReady,
		startTime:    time.Now(),
	}
}

func (h *Handler) webhookTimeout() time.Duration {
	if h.cfg == nil || h.cfg.Server.WebhookTimeout <= 0 {
		return 10 * time.Second
	}
	return h.cfg.Server.WebhookTimeout
}
