// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

// Package provisioning grants the entitlement a settled order paid for.
//
// At most one entitlement exists per payer and product. Provisioning an
// order whose payer already owns the product is a no-op that reports the
// existing entitlement. Purchase counters are bumped only when a new
// entitlement is created, and their failure never fails provisioning.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/coursepay/internal/breaker"
	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/logging"
	"github.com/tomtom215/coursepay/internal/metrics"
	"github.com/tomtom215/coursepay/internal/models"
)

var (
	// ErrProvisioningFailed wraps any failure to create the entitlement.
	ErrProvisioningFailed = errors.New("provisioning failed")

	// ErrOrderNotSettled is returned for orders that are not completed.
	ErrOrderNotSettled = errors.New("order is not settled")
)

// Store is the subset of the ledger provisioning writes to.
type Store interface {
	CreateEntitlement(ctx context.Context, e *models.Entitlement) (bool, error)
	GetEntitlement(ctx context.Context, payerID, productID string) (*models.Entitlement, error)
	IncrementProductPurchases(ctx context.Context, productID string) error
	IncrementPayerPurchases(ctx context.Context, payerID string) error
}

// Result describes a successful provisioning.
type Result struct {
	Entitlement *models.Entitlement
	// Created is false when the payer already owned the product.
	Created bool
}

// Provisioner creates entitlements for settled orders.
type Provisioner struct {
	store   Store
	breaker *breaker.Breaker
	log     zerolog.Logger
	newID   func() string
	now     func() time.Time
}

// New creates a Provisioner guarded by a circuit breaker configured from cfg.
func New(store Store, cfg *config.ProvisioningConfig) *Provisioner {
	return &Provisioner{
		store: store,
		breaker: breaker.New(breaker.Settings{
			Name:        "provisioning",
			MaxFailures: cfg.BreakerMaxFailures,
			Timeout:     cfg.BreakerTimeout,
			Interval:    cfg.BreakerInterval,
		}),
		log:   logging.WithComponent("provisioning"),
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Provision grants order's payer access to order's product.
func (p *Provisioner) Provision(ctx context.Context, order *models.Order) (*Result, error) {
	if order == nil || order.Status != models.OrderStatusCompleted {
		metrics.RecordProvisioning("rejected")
		return nil, ErrOrderNotSettled
	}

	ent := &models.Entitlement{
		ID:            p.newID(),
		PayerID:       order.PayerID,
		ProductID:     order.ProductID,
		OrderID:       order.ID,
		GatewayRef:    order.GatewayRef,
		TransactionID: order.TransactionID,
		CreatedAt:     p.now().UTC(),
	}

	var created bool
	err := p.breaker.Execute(func() error {
		var err error
		created, err = p.store.CreateEntitlement(ctx, ent)
		return err
	})
	if err != nil {
		metrics.RecordProvisioning("failed")
		return nil, fmt.Errorf("%w: %w", ErrProvisioningFailed, err)
	}

	log := logging.FromContext(ctx, p.log).With().
		Str("payer_id", order.PayerID).
		Str("product_id", order.ProductID).
		Logger()

	if !created {
		metrics.RecordProvisioning("existing")
		existing, err := p.store.GetEntitlement(ctx, order.PayerID, order.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: read existing entitlement: %w", ErrProvisioningFailed, err)
		}
		log.Info().Str("entitlement_ref", existing.GatewayRef).Msg("Payer already entitled, nothing to provision")
		return &Result{Entitlement: existing, Created: false}, nil
	}

	metrics.RecordProvisioning("granted")
	log.Info().Str("entitlement_id", ent.ID).Msg("Entitlement granted")

	p.bumpCounters(ctx, order)
	return &Result{Entitlement: ent, Created: true}, nil
}

// bumpCounters updates purchase statistics. Failures are logged and counted
// only.
func (p *Provisioner) bumpCounters(ctx context.Context, order *models.Order) {
	if err := p.store.IncrementProductPurchases(ctx, order.ProductID); err != nil {
		metrics.RecordCounterFailure("product")
		logging.FromContext(ctx, p.log).Warn().Err(err).Str("product_id", order.ProductID).Msg("Failed to update product purchase counter")
	}
	if err := p.store.IncrementPayerPurchases(ctx, order.PayerID); err != nil {
		metrics.RecordCounterFailure("payer")
		logging.FromContext(ctx, p.log).Warn().Err(err).Str("payer_id", order.PayerID).Msg("Failed to update payer purchase counter")
	}
}

// BreakerState reports the entitlement-store guard state for the health
// report: closed, half-open or open.
func (p *Provisioner) BreakerState() string {
	return p.breaker.State()
}
