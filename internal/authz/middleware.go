// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package authz

import (
	"fmt"
	"net/http"

	"github.com/tomtom215/coursepay/internal/audit"
	"github.com/tomtom215/coursepay/internal/auth"
	"github.com/tomtom215/coursepay/internal/logging"
)

// AuditLogger receives denied-access events.
type AuditLogger interface {
	Log(event *audit.Event)
}

// Middleware enforces policy on authenticated requests. It must run after
// auth.RequireAuth.
type Middleware struct {
	enforcer *Enforcer
	audit    AuditLogger
}

// NewMiddleware creates the authorization middleware. auditLogger may be nil.
func NewMiddleware(enforcer *Enforcer, auditLogger AuditLogger) *Middleware {
	return &Middleware{enforcer: enforcer, audit: auditLogger}
}

// Authorize permits the request only if the caller's role may perform
// action on object.
func (m *Middleware) Authorize(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.ClaimsFromContext(r.Context())
			if claims == nil {
				http.Error(w, "Forbidden: no authentication context", http.StatusForbidden)
				return
			}

			allowed, err := m.enforcer.Enforce(claims.Role, object, action)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !allowed {
				m.denied(r, claims, object, action)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) denied(r *http.Request, claims *auth.Claims, object, action string) {
	logging.Ctx(r.Context()).Warn().
		Str("user_id", claims.UserID()).
		Str("role", claims.Role).
		Str("object", object).
		Str("action", action).
		Msg("Access denied")

	if m.audit == nil {
		return
	}
	m.audit.Log(&audit.Event{
		Type:      audit.EventTypeAuthzDenied,
		Severity:  audit.SeverityWarning,
		Outcome:   audit.OutcomeFailure,
		Actor:     audit.Actor{ID: claims.UserID(), Type: claims.Role},
		SourceIP:  r.RemoteAddr,
		Action:    action,
		Message:   fmt.Sprintf("%s denied %s on %s", claims.Role, action, object),
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
}
