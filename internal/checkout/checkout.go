// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

// Package checkout opens purchase attempts: it records a pending order with
// a fresh gateway reference and returns the signed payment URL. It never
// settles anything.
//
// The order amount always comes from the catalog. A client-supplied amount
// is only checked against the catalog price.
package checkout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/coursepay/internal/audit"
	"github.com/tomtom215/coursepay/internal/catalog"
	"github.com/tomtom215/coursepay/internal/database"
	"github.com/tomtom215/coursepay/internal/gateway"
	"github.com/tomtom215/coursepay/internal/logging"
	"github.com/tomtom215/coursepay/internal/models"
)

const (
	paymentMethodGateway = "gateway"

	// A colliding reference is regenerated this many times before giving up.
	maxReferenceAttempts = 3
)

var (
	// ErrAlreadyEntitled is returned when the payer already owns the product.
	ErrAlreadyEntitled = errors.New("payer already owns this product")

	// ErrNotRetryable is returned when retrying an order that has not failed.
	ErrNotRetryable = errors.New("only failed orders can be retried")

	// ErrNotOwner is returned when a payer acts on someone else's order.
	ErrNotOwner = errors.New("order belongs to another payer")

	// ErrPriceMismatch is returned when the client quotes an amount or
	// currency other than the catalog's.
	ErrPriceMismatch = errors.New("quoted price does not match catalog price")
)

// Store is the ledger surface checkout writes to.
type Store interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrderByReference(ctx context.Context, ref string) (*models.Order, error)
	HasEntitlement(ctx context.Context, payerID, productID string) (bool, error)
}

// AuditLogger receives audit events.
type AuditLogger interface {
	Log(event *audit.Event)
}

// Payer identifies who is paying and from where.
type Payer struct {
	ID string
	IP string
}

// Service creates orders and payment URLs.
type Service struct {
	store   Store
	prices  catalog.PriceSource
	adapter gateway.Adapter
	audit   AuditLogger
	log     zerolog.Logger
	now     func() time.Time
	random  func([]byte) (int, error)
}

// New creates a checkout Service. audit may be nil.
func New(store Store, prices catalog.PriceSource, adapter gateway.Adapter, auditLogger AuditLogger) *Service {
	return &Service{
		store:   store,
		prices:  prices,
		adapter: adapter,
		audit:   auditLogger,
		log:     logging.WithComponent("checkout"),
		now:     time.Now,
		random:  rand.Read,
	}
}

// Create records a new pending order for payer, priced from the catalog,
// and returns it with its payment URL.
func (s *Service) Create(ctx context.Context, payer Payer, req *models.CreateOrderRequest) (*models.CheckoutResponse, error) {
	product, err := s.prices.Product(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("price %s: %w", req.ProductID, err)
	}
	if (req.Amount != 0 && req.Amount != product.Price) || (req.Currency != "" && req.Currency != product.Currency) {
		s.logger(ctx).Warn().
			Str("payer_id", payer.ID).
			Str("product_id", product.ID).
			Float64("quoted", req.Amount).
			Float64("price", product.Price).
			Msg("Rejected order quoting a non-catalog price")
		return nil, fmt.Errorf("%w: %s costs %.2f %s", ErrPriceMismatch, product.ID, product.Price, product.Currency)
	}

	owned, err := s.store.HasEntitlement(ctx, payer.ID, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("check entitlement: %w", err)
	}
	if owned {
		return nil, ErrAlreadyEntitled
	}

	method := req.PaymentMethod
	if method == "" {
		method = paymentMethodGateway
	}

	order := &models.Order{
		PayerID:       payer.ID,
		ProductID:     product.ID,
		Amount:        product.Price,
		Currency:      product.Currency,
		Status:        models.OrderStatusPending,
		PaymentMethod: method,
		Description:   req.Description,
	}
	payReq := gateway.PaymentRequest{
		PayerIP:    payer.IP,
		BankCode:   req.BankCode,
		Locale:     req.Locale,
		PayerEmail: req.PayerEmail,
		PayerName:  req.PayerName,
	}
	return s.open(ctx, order, payReq, audit.EventTypeOrderCreated)
}

// Retry opens a new attempt for a failed order. The new order copies amount
// and product, gets a fresh reference and RetryAttempt+1.
func (s *Service) Retry(ctx context.Context, payer Payer, ref string, req *models.RetryOrderRequest) (*models.CheckoutResponse, error) {
	prev, err := s.store.GetOrderByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if prev.PayerID != payer.ID {
		return nil, ErrNotOwner
	}
	if prev.Status != models.OrderStatusFailed {
		return nil, fmt.Errorf("%w: order %s is %s", ErrNotRetryable, ref, prev.Status)
	}
	owned, err := s.store.HasEntitlement(ctx, prev.PayerID, prev.ProductID)
	if err != nil {
		return nil, fmt.Errorf("check entitlement: %w", err)
	}
	if owned {
		return nil, ErrAlreadyEntitled
	}

	order := &models.Order{
		PayerID:       prev.PayerID,
		ProductID:     prev.ProductID,
		Amount:        prev.Amount,
		Currency:      prev.Currency,
		Status:        models.OrderStatusPending,
		PaymentMethod: prev.PaymentMethod,
		Description:   prev.Description,
		RetryAttempt:  prev.RetryAttempt + 1,
	}
	payReq := gateway.PaymentRequest{PayerIP: payer.IP}
	if req != nil {
		payReq.BankCode = req.BankCode
		payReq.Locale = req.Locale
	}
	return s.open(ctx, order, payReq, audit.EventTypeOrderRetried)
}

func (s *Service) open(ctx context.Context, order *models.Order, payReq gateway.PaymentRequest, auditType audit.EventType) (*models.CheckoutResponse, error) {
	var err error
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		order.ID = uuid.NewString()
		order.GatewayRef, err = s.newReference()
		if err != nil {
			return nil, err
		}
		err = s.store.CreateOrder(ctx, order)
		if !errors.Is(err, database.ErrDuplicateReference) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	payURL, err := s.adapter.BuildPaymentURL(order, payReq)
	if err != nil {
		return nil, fmt.Errorf("build payment url: %w", err)
	}

	s.logger(ctx).Info().
		Str("gateway_ref", order.GatewayRef).
		Str("payer_id", order.PayerID).
		Str("product_id", order.ProductID).
		Float64("amount", order.Amount).
		Int("retry_attempt", order.RetryAttempt).
		Msg("Order opened")

	if s.audit != nil {
		s.audit.Log(&audit.Event{
			Type:       auditType,
			Severity:   audit.SeverityInfo,
			Outcome:    audit.OutcomeSuccess,
			Actor:      audit.Actor{ID: order.PayerID, Type: audit.ActorPayer},
			GatewayRef: order.GatewayRef,
			SourceIP:   payReq.PayerIP,
			Action:     string(auditType),
			Message:    fmt.Sprintf("Order for %s opened (attempt %d)", order.ProductID, order.RetryAttempt),
			RequestID:  logging.RequestIDFromContext(ctx),
		})
	}

	return &models.CheckoutResponse{Order: order, PaymentURL: payURL}, nil
}

func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	return logging.FromContext(ctx, s.log)
}

// newReference returns a gateway reference: creation time to the second
// followed by 64 random bits. Concurrent attempts by one payer for one
// product cannot collide except by chance, and the ledger rejects that.
func (s *Service) newReference() (string, error) {
	buf := make([]byte, 8)
	if _, err := s.random(buf); err != nil {
		return "", fmt.Errorf("generate reference: %w", err)
	}
	ts := s.now().UTC().Format("20060102150405")
	return ts + strings.ToUpper(hex.EncodeToString(buf)), nil
}
