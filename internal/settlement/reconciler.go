// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

// Package settlement is the only code path that changes an order's status
// in response to the payment gateway.
//
// Reconcile runs, per inbound webhook:
//
//  1. authenticate the parameter set;
//  2. locate the order by gateway reference;
//  3. return already-processed for a terminal order;
//  4. reject an amount that differs from the order's, leaving it pending;
//  5. move the order to completed or failed with a conditional update;
//  6. provision the entitlement on success, never undoing the settlement;
//  7. acknowledge with one Outcome.
//
// Step 5 is a compare-and-swap in the ledger, so any number of concurrent
// deliveries for one reference produce exactly one transition.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/coursepay/internal/audit"
	"github.com/tomtom215/coursepay/internal/database"
	"github.com/tomtom215/coursepay/internal/events"
	"github.com/tomtom215/coursepay/internal/gateway"
	"github.com/tomtom215/coursepay/internal/journal"
	"github.com/tomtom215/coursepay/internal/logging"
	"github.com/tomtom215/coursepay/internal/metrics"
	"github.com/tomtom215/coursepay/internal/models"
	"github.com/tomtom215/coursepay/internal/provisioning"
)

const (
	// DefaultAmountTolerance absorbs currency rounding between the order
	// amount and the gateway's minor-unit amount.
	DefaultAmountTolerance = 0.01

	defaultSideEffectTimeout = 10 * time.Second

	deliverySourceWebhook = "webhook"
)

// ErrAmountMismatch is the cause attached to amount-invalid results.
var ErrAmountMismatch = errors.New("settled amount does not match order amount")

// Ledger is the part of the order store reconciliation needs.
type Ledger interface {
	GetOrderByReference(ctx context.Context, ref string) (*models.Order, error)
	TransitionOrder(ctx context.Context, t models.Transition) error
	AnnotateOrder(ctx context.Context, ref string, extra map[string]string) error
}

// Provisioner grants the entitlement for a completed order.
type Provisioner interface {
	Provision(ctx context.Context, order *models.Order) (*provisioning.Result, error)
}

// AuditLogger receives audit events. *audit.Logger satisfies it.
type AuditLogger interface {
	Log(event *audit.Event)
}

// Deps are the collaborators of a Reconciler. Ledger, Gateway and
// Provisioner are required.
type Deps struct {
	Ledger      Ledger
	Gateway     gateway.Adapter
	Provisioner Provisioner
	Journal     journal.Journal
	Audit       AuditLogger
	Events      events.Emitter
}

// Reconciler applies gateway settlement events to the order ledger.
type Reconciler struct {
	ledger      Ledger
	adapter     gateway.Adapter
	provisioner Provisioner
	journal     journal.Journal
	audit       AuditLogger
	events      events.Emitter
	log         zerolog.Logger

	tolerance         float64
	sideEffectTimeout time.Duration
	now               func() time.Time
}

// New creates a Reconciler. A non-positive tolerance uses
// DefaultAmountTolerance.
func New(deps Deps, tolerance float64) (*Reconciler, error) {
	if deps.Ledger == nil || deps.Gateway == nil || deps.Provisioner == nil {
		return nil, errors.New("settlement: ledger, gateway and provisioner are required")
	}
	if tolerance <= 0 {
		tolerance = DefaultAmountTolerance
	}
	r := &Reconciler{
		ledger:            deps.Ledger,
		adapter:           deps.Gateway,
		provisioner:       deps.Provisioner,
		journal:           deps.Journal,
		audit:             deps.Audit,
		events:            deps.Events,
		log:               logging.WithComponent("settlement"),
		tolerance:         tolerance,
		sideEffectTimeout: defaultSideEffectTimeout,
		now:               time.Now,
	}
	if r.events == nil {
		r.events = events.NopEmitter{}
	}
	return r, nil
}

// Reconcile processes one inbound settlement parameter set. It never
// panics on malformed input and never returns an error; the outcome and its
// internal cause are both in the Result.
func (r *Reconciler) Reconcile(ctx context.Context, params url.Values) Result {
	start := time.Now()
	res := r.reconcile(ctx, params)
	res.Duration = time.Since(start)

	metrics.RecordSettlement(string(res.Outcome), res.Duration)

	log := r.logger(ctx)
	var ev = log.Info()
	switch res.Outcome {
	case OutcomeInternalError:
		ev = log.Error().Err(res.Err)
	case OutcomeSignatureInvalid, OutcomeAmountInvalid, OutcomeOrderNotFound:
		ev = log.Warn().Err(res.Err)
	}
	// The ref is unverified on the signature-invalid path.
	ev.Str("gateway_ref", logging.SanitizeValue(res.GatewayRef)).
		Str("outcome", string(res.Outcome)).
		Str("rsp_code", res.Outcome.Code()).
		Bool("payment_succeeded", res.PaymentSucceeded).
		Bool("duplicate", res.Duplicate).
		Dur("duration", res.Duration).
		Msg("Settlement reconciled")
	return res
}

func (r *Reconciler) reconcile(ctx context.Context, params url.Values) Result {
	ref := params.Get(gateway.ParamTxnRef)

	// 1. Authenticate. Nothing below runs for an unauthenticated event.
	if v := r.adapter.VerifySignature(params); !v.Valid {
		metrics.RecordSignatureFailure(v.Reason)
		r.logAudit(ctx, audit.EventTypePaymentSignatureInvalid, audit.SeverityWarning, audit.OutcomeFailure,
			logging.SanitizeValue(ref), "Rejected settlement notification with invalid signature", map[string]string{"reason": v.Reason})
		return Result{Outcome: OutcomeSignatureInvalid, GatewayRef: ref, Err: errors.New(v.Reason)}
	}

	event, err := gateway.ParseEvent(params)
	if err != nil {
		return Result{Outcome: OutcomeSignatureInvalid, GatewayRef: ref, Err: err}
	}
	ctx = logging.ContextWithGatewayRef(ctx, event.GatewayRef)
	res := Result{GatewayRef: event.GatewayRef}
	res.Duplicate = r.recordDelivery(ctx, event.GatewayRef, params.Get(gateway.ParamSecureHash))

	// 2. Locate.
	order, err := r.ledger.GetOrderByReference(ctx, event.GatewayRef)
	if errors.Is(err, database.ErrOrderNotFound) {
		r.logAudit(ctx, audit.EventTypePaymentOrderNotFound, audit.SeverityWarning, audit.OutcomeFailure,
			event.GatewayRef, "Settlement notification for unknown order", nil)
		res.Outcome, res.Err = OutcomeOrderNotFound, err
		return res
	}
	if err != nil {
		res.Outcome, res.Err = OutcomeInternalError, fmt.Errorf("locate order: %w", err)
		return res
	}
	res.Order = order

	// 3. Idempotency gate.
	if order.Status.IsTerminal() {
		return r.alreadyProcessed(ctx, res)
	}

	// 4. Amount reconciliation. A mismatch leaves the order pending.
	if diff := math.Abs(event.Amount() - order.Amount); diff > r.tolerance {
		r.logAudit(ctx, audit.EventTypePaymentAmountMismatch, audit.SeverityError, audit.OutcomeFailure,
			event.GatewayRef, "Settled amount does not match order amount", map[string]string{
				"expected": fmt.Sprintf("%.2f", order.Amount),
				"received": fmt.Sprintf("%.2f", event.Amount()),
			})
		res.Outcome = OutcomeAmountInvalid
		res.Err = fmt.Errorf("%w: expected %.2f, received %.2f", ErrAmountMismatch, order.Amount, event.Amount())
		return res
	}

	// 5. Transition.
	t := r.transitionFor(event)
	err = r.ledger.TransitionOrder(ctx, t)
	switch {
	case errors.Is(err, database.ErrTransitionConflict):
		return r.alreadyProcessed(ctx, res)
	case errors.Is(err, database.ErrOrderNotFound):
		res.Outcome, res.Err = OutcomeOrderNotFound, err
		return res
	case err != nil:
		res.Outcome, res.Err = OutcomeInternalError, fmt.Errorf("transition order: %w", err)
		return res
	}
	applyTransition(order, t)
	res.Outcome = OutcomeSuccess

	// The settlement is durable from here on. Side effects get their own
	// deadline so a webhook timeout cannot cut provisioning short.
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.sideEffectTimeout)
	defer cancel()

	if t.To == models.OrderStatusFailed {
		r.logAudit(sideCtx, audit.EventTypePaymentFailed, audit.SeverityInfo, audit.OutcomeSuccess,
			order.GatewayRef, "Payment declined by gateway", map[string]string{models.MetaFailureCode: event.FailureCode()})
		r.emit(sideCtx, events.TypePaymentFailed, order, event.FailureCode())
		return res
	}

	res.PaymentSucceeded = true
	r.logAudit(sideCtx, audit.EventTypePaymentSettled, audit.SeverityInfo, audit.OutcomeSuccess,
		order.GatewayRef, "Payment settled", map[string]string{
			"transaction_id": order.TransactionID,
			"amount":         fmt.Sprintf("%.2f", order.Amount),
		})
	r.emit(sideCtx, events.TypePaymentSettled, order, "")

	// 6. Provision.
	prov, err := r.provisioner.Provision(sideCtx, order)
	if err != nil {
		res.ProvisioningErr = err
		r.recordProvisioningFailure(sideCtx, order, err)
		return res
	}
	res.Entitlement = prov.Entitlement
	if prov.Created {
		r.emit(sideCtx, events.TypeEntitlementGranted, order, "")
	}
	return res
}

func (r *Reconciler) transitionFor(event *gateway.Event) models.Transition {
	meta := event.Metadata()
	if event.Succeeded() {
		settled := r.now().UTC()
		return models.Transition{
			GatewayRef:    event.GatewayRef,
			To:            models.OrderStatusCompleted,
			TransactionID: event.TransactionNo,
			SettledAt:     &settled,
			Metadata:      meta,
		}
	}
	meta[models.MetaFailureCode] = event.FailureCode()
	return models.Transition{
		GatewayRef:    event.GatewayRef,
		To:            models.OrderStatusFailed,
		TransactionID: event.TransactionNo,
		Metadata:      meta,
	}
}

func applyTransition(o *models.Order, t models.Transition) {
	o.Status = t.To
	o.TransactionID = t.TransactionID
	o.SettledAt = t.SettledAt
	if o.GatewayMetadata == nil {
		o.GatewayMetadata = make(map[string]string, len(t.Metadata))
	}
	for k, v := range t.Metadata {
		o.GatewayMetadata[k] = v
	}
}

func (r *Reconciler) alreadyProcessed(ctx context.Context, res Result) Result {
	metrics.RecordDuplicateDelivery()
	r.logAudit(ctx, audit.EventTypePaymentDuplicate, audit.SeverityInfo, audit.OutcomeSuccess,
		res.GatewayRef, "Settlement notification for an already settled order", nil)

	// Refresh so callers see the state the winner wrote.
	if o, err := r.ledger.GetOrderByReference(ctx, res.GatewayRef); err == nil {
		res.Order = o
	}
	res.Outcome = OutcomeAlreadyProcessed
	return res
}

// recordDelivery notes the delivery in the journal. Failures are logged and
// ignored; the ledger alone decides idempotency.
func (r *Reconciler) recordDelivery(ctx context.Context, ref, signature string) bool {
	if r.journal == nil {
		return false
	}
	dup, err := r.journal.RecordDelivery(ctx, &journal.Delivery{
		GatewayRef: ref,
		Digest:     journal.Digest(ref, signature),
		Source:     deliverySourceWebhook,
	})
	if err != nil {
		r.logger(ctx).Warn().Err(err).Msg("Failed to record delivery in journal")
		return false
	}
	return dup
}

func (r *Reconciler) recordProvisioningFailure(ctx context.Context, order *models.Order, cause error) {
	log := r.logger(ctx)
	log.Error().Err(cause).
		Str("order_id", order.ID).
		Str("payer_id", order.PayerID).
		Str("product_id", order.ProductID).
		Msg("Provisioning failed for settled order; manual remediation required")

	r.logAudit(ctx, audit.EventTypeProvisioningFailed, audit.SeverityCritical, audit.OutcomeFailure,
		order.GatewayRef, "Entitlement could not be created for settled order", map[string]string{"error": cause.Error()})

	if err := r.ledger.AnnotateOrder(ctx, order.GatewayRef, map[string]string{
		models.MetaProvisioningError: cause.Error(),
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to annotate order with provisioning error")
	}

	if r.journal == nil {
		return
	}
	if err := r.journal.RecordProvisioningFailure(ctx, &models.ProvisioningFailure{
		GatewayRef: order.GatewayRef,
		OrderID:    order.ID,
		PayerID:    order.PayerID,
		ProductID:  order.ProductID,
		Error:      cause.Error(),
		FailedAt:   r.now().UTC(),
	}); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue provisioning failure")
		return
	}
	r.refreshQueueSize(ctx)
}

func (r *Reconciler) refreshQueueSize(ctx context.Context) {
	if r.journal == nil {
		return
	}
	if list, err := r.journal.ListProvisioningFailures(ctx); err == nil {
		metrics.SetProvisioningQueueSize(len(list))
	}
}

func (r *Reconciler) emit(ctx context.Context, t events.Type, order *models.Order, failureCode string) {
	e := events.NewEvent(t, order.GatewayRef)
	e.OrderID = order.ID
	e.PayerID = order.PayerID
	e.ProductID = order.ProductID
	e.Amount = order.Amount
	e.Currency = order.Currency
	e.TransactionID = order.TransactionID
	e.FailureCode = failureCode
	r.events.Emit(ctx, e)
}

func (r *Reconciler) logger(ctx context.Context) *zerolog.Logger {
	return logging.FromContext(ctx, r.log)
}

func (r *Reconciler) logAudit(ctx context.Context, t audit.EventType, sev audit.Severity, outcome audit.Outcome,
	ref, message string, meta map[string]string) {
	if r.audit == nil {
		return
	}
	e := audit.NewPaymentEvent(t, sev, outcome, ref, message, meta)
	e.RequestID = logging.RequestIDFromContext(ctx)
	r.audit.Log(e)
}
