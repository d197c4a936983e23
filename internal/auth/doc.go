// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

/*
Package auth authenticates payers and administrators on the order API.

Tokens are HS256 JWTs signed with security.jwt_secret. The subject claim is
the payer id; the role claim ("student" or "admin") feeds the casbin
enforcer in package authz.

The gateway endpoints (webhook, return) are never behind this middleware:
the gateway authenticates with its own signature.

Usage:

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	r.With(auth.RequireAuth(jwtManager)).Post("/api/v1/orders", h.CreateOrder)
*/
package auth
