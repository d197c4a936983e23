// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	gatewayRefKey contextKey = "gateway_ref"
)

// GenerateRequestID returns a new random request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID returns ctx carrying the request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithGatewayRef tags ctx with the order reference being reconciled so
// that every log line written further down the call chain carries it.
func ContextWithGatewayRef(ctx context.Context, ref string) context.Context {
	return context.WithValue(ctx, gatewayRefKey, ref)
}

// GatewayRefFromContext returns the order reference or "".
func GatewayRefFromContext(ctx context.Context) string {
	if ref, ok := ctx.Value(gatewayRefKey).(string); ok {
		return ref
	}
	return ""
}

// Ctx returns the global logger enriched with request_id and gateway_ref
// when present in ctx.
//
//	logging.Ctx(ctx).Info().Msg("Settlement applied")
func Ctx(ctx context.Context) *zerolog.Logger {
	return FromContext(ctx, Logger())
}

// FromContext enriches base, usually a WithComponent logger, with the
// request_id and gateway_ref carried by ctx.
func FromContext(ctx context.Context, base zerolog.Logger) *zerolog.Logger {
	lc := base.With()
	if id := RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if ref := GatewayRefFromContext(ctx); ref != "" {
		lc = lc.Str("gateway_ref", ref)
	}
	l := lc.Logger()
	return &l
}
