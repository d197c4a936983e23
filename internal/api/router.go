// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/coursepay/internal/auth"
	"github.com/tomtom215/coursepay/internal/authz"
	"github.com/tomtom215/coursepay/internal/gateway"
	"github.com/tomtom215/coursepay/internal/middleware"
)

// MockGatewayPath is where the development hosted page is mounted.
const MockGatewayPath = "/mock-gateway/pay"

// Router wires handlers and middleware into a Chi tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	jwt           *auth.JWTManager
	authz         *authz.Middleware
	maxBodyBytes  int64
}

// NewRouter creates a Router. maxBodyBytes caps gateway request bodies.
func NewRouter(handler *Handler, chiMW *ChiMiddleware, jwt *auth.JWTManager, authzMW *authz.Middleware, maxBodyBytes int64) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: chiMW,
		jwt:           jwt,
		authz:         authzMW,
		maxBodyBytes:  maxBodyBytes,
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom(RateLimitHealth))
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	// Gateway-facing endpoints authenticate by signature, not by token.
	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom(RateLimitGateway))
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(middleware.MaxBodyBytes(router.maxBodyBytes)))
		r.Get("/webhook", router.handler.Webhook)
		r.Post("/webhook", router.handler.Webhook)
		r.Get("/return", router.handler.Return)
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(auth.RequireAuth(router.jwt))

		r.With(router.chiMiddleware.RateLimitCustom(RateLimitWrite),
			router.authz.Authorize(authz.ObjectOrders, authz.ActionWrite)).
			Post("/", router.handler.CreateOrder)
		r.With(router.chiMiddleware.RateLimitCustom(RateLimitWrite),
			router.authz.Authorize(authz.ObjectOrders, authz.ActionWrite)).
			Post("/{ref}/retry", router.handler.RetryOrder)
		r.With(router.authz.Authorize(authz.ObjectOrders, authz.ActionRead)).
			Get("/", router.handler.ListOrders)
		r.With(router.authz.Authorize(authz.ObjectOrders, authz.ActionRead)).
			Get("/{ref}", router.handler.GetOrder)
	})

	// The catalog is public.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Get("/", router.handler.ListProducts)
		r.Get("/{id}", router.handler.GetProduct)
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom(RateLimitAdmin))
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(auth.RequireAuth(router.jwt))

		r.With(router.authz.Authorize(authz.ObjectRemediation, authz.ActionRead)).
			Get("/provisioning-failures", router.handler.ListProvisioningFailures)
		r.With(router.authz.Authorize(authz.ObjectRemediation, authz.ActionWrite)).
			Post("/provisioning-failures/{ref}/resolve", router.handler.ResolveProvisioningFailure)
		r.With(router.authz.Authorize(authz.ObjectAudit, authz.ActionRead)).
			Get("/audit", router.handler.AuditEvents)
	})

	if _, ok := router.handler.adapter.(gateway.Simulator); ok {
		r.Get(MockGatewayPath, router.handler.MockPaymentPage)
		r.Post(MockGatewayPath, router.handler.MockPaymentComplete)
	}

	return r
}
