// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/coursepay/internal/audit"
	"github.com/tomtom215/coursepay/internal/events"
	"github.com/tomtom215/coursepay/internal/journal"
	"github.com/tomtom215/coursepay/internal/logging"
	"github.com/tomtom215/coursepay/internal/models"
	"github.com/tomtom215/coursepay/internal/provisioning"
)

// ErrNoJournal is returned by remediation calls when no journal is wired.
var ErrNoJournal = errors.New("settlement: remediation queue not configured")

// ProvisioningFailures lists settled orders awaiting an entitlement.
func (r *Reconciler) ProvisioningFailures(ctx context.Context) ([]*models.ProvisioningFailure, error) {
	if r.journal == nil {
		return nil, ErrNoJournal
	}
	list, err := r.journal.ListProvisioningFailures(ctx)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ResolveProvisioningFailure re-runs provisioning for the completed order
// behind ref and clears its remediation entry. The settlement itself is
// never re-run. Resolving an order whose entitlement already exists is
// safe and simply clears the entry.
func (r *Reconciler) ResolveProvisioningFailure(ctx context.Context, ref, actorID string) (*provisioning.Result, error) {
	order, err := r.ledger.GetOrderByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusCompleted {
		return nil, fmt.Errorf("%w: order %s is %s", provisioning.ErrOrderNotSettled, ref, order.Status)
	}

	res, err := r.provisioner.Provision(ctx, order)
	if err != nil {
		return nil, err
	}

	if r.journal != nil {
		if err := r.journal.ResolveProvisioningFailure(ctx, ref); err != nil && !errors.Is(err, journal.ErrFailureNotFound) {
			r.logger(ctx).Warn().Err(err).Str("gateway_ref", ref).Msg("Failed to clear remediation entry")
		}
		r.refreshQueueSize(ctx)
	}

	if res.Created {
		r.emit(ctx, events.TypeEntitlementGranted, order, "")
	}
	if r.audit != nil {
		e := audit.NewPaymentEvent(audit.EventTypeProvisioningResolved, audit.SeverityInfo, audit.OutcomeSuccess,
			ref, "Provisioning failure resolved", map[string]string{"entitlement_id": res.Entitlement.ID})
		e.Actor = audit.Actor{ID: actorID, Type: audit.ActorAdmin}
		e.RequestID = logging.RequestIDFromContext(ctx)
		r.audit.Log(e)
	}

	r.logger(ctx).Info().
		Str("gateway_ref", ref).
		Str("actor", actorID).
		Bool("created", res.Created).
		Msg("Provisioning failure resolved")
	return res, nil
}
