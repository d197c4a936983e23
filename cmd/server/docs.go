// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

// Package main provides the Coursepay HTTP server
//
// @title Coursepay API
// @version 1.0
// @description Course purchase checkout, gateway settlement and remediation.
// @description
// @description ## Authentication
// @description
// @description Order and admin endpoints require a bearer JWT issued by the surrounding platform.
// @description Gateway endpoints authenticate by signature, not by token.
// @description
// @description ## Error Responses
// @description
// @description Every endpoint except the gateway webhook answers with the envelope
// @description `{"status", "data", "metadata", "error"}`. The webhook answers `{"RspCode", "Message"}`.
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @BasePath /api/v1
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer JWT: "Bearer <token>".
//
// @tag.name Orders
// @tag.description Checkout, retry and order history for the authenticated payer
//
// @tag.name Catalog
// @tag.description Products and their prices
//
// @tag.name Payments
// @tag.description Gateway-facing settlement webhook and payer return
//
// @tag.name Admin
// @tag.description Provisioning remediation and audit trail
//
// @tag.name Health
// @tag.description Liveness, readiness and dependency health
package main
