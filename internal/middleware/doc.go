// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

/*
Package middleware provides HTTP middleware shared by every route.

  - RequestID: accepts or generates X-Request-ID and puts it in the logging
    context, so every log line and audit event of one request correlates.
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by chi route pattern rather than raw path so gateway references never
    become label values.
  - MaxBodyBytes: caps request bodies, used on the gateway webhook.

Handlers take and return http.HandlerFunc; the router adapts them to chi.
*/
package middleware
