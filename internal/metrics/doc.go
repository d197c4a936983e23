// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

/*
Package metrics exposes Prometheus instrumentation for the settlement engine.

Metrics are registered on the default registry through promauto and served at
/metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

Settlement:
  - coursepay_settlement_outcomes_total{outcome}: acknowledgements by outcome
  - coursepay_settlement_duration_seconds: reconcile latency (histogram)
  - coursepay_webhook_duplicates_total: deliveries already seen by the journal
  - coursepay_signature_failures_total{reason}: rejected parameter sets

Provisioning:
  - coursepay_provisioning_total{result}: granted, existing, failed, rejected
  - coursepay_provisioning_queue_size: unresolved provisioning failures
  - coursepay_counter_update_failures_total{counter}: best-effort counter misses

Events:
  - coursepay_events_published_total{result}: settlement events handed to the bus

HTTP:
  - coursepay_api_requests_total{method,endpoint,status_code}
  - coursepay_api_request_duration_seconds{method,endpoint}
  - coursepay_api_active_requests
  - coursepay_api_rate_limit_hits_total{endpoint}

Circuit breakers:
  - coursepay_circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - coursepay_circuit_breaker_requests_total{name,result}
  - coursepay_circuit_breaker_state_transitions_total{name,from_state,to_state}
*/
package metrics
