// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

/*
Package api exposes Coursepay over HTTP using the Chi router.

Route groups:

  - /api/v1/payments: gateway-facing webhook (IPN) and browser return
    endpoints. No authentication; every inbound parameter set is
    authenticated by its gateway signature instead.
  - /api/v1/orders: payer checkout, retry and status lookup (JWT).
  - /api/v1/admin: remediation queue and audit trail (JWT + casbin).
  - /api/v1/health and /metrics: liveness, readiness and Prometheus.
  - /mock-gateway: development hosted page, mounted only when the selected
    gateway adapter can simulate payments.

JSON responses use models.APIResponse, except the webhook which answers in
the gateway's own {"RspCode","Message"} shape.
*/
package api
