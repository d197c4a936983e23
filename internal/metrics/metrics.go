// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coursepay"

var (
	// Settlement Metrics
	SettlementOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_outcomes_total",
			Help:      "Total number of settlement acknowledgements by outcome",
		},
		[]string{"outcome"},
	)

	SettlementDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_duration_seconds",
			Help:      "Duration of settlement reconciliation in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	WebhookDuplicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_duplicates_total",
			Help:      "Total number of gateway deliveries already recorded in the journal",
		},
	)

	SignatureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_failures_total",
			Help:      "Total number of gateway parameter sets that failed authentication",
		},
		[]string{"reason"},
	)

	// Provisioning Metrics
	ProvisioningTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisioning_total",
			Help:      "Total number of provisioning attempts by result",
		},
		[]string{"result"}, // granted, existing, failed, rejected
	)

	ProvisioningQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provisioning_queue_size",
			Help:      "Current number of settled orders awaiting provisioning remediation",
		},
	)

	CounterUpdateFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_update_failures_total",
			Help:      "Total number of best-effort purchase counter updates that failed",
		},
		[]string{"counter"},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of settlement events handed to the event bus",
		},
		[]string{"result"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_active_requests",
			Help:      "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_rate_limit_hits_total",
			Help:      "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_requests_total",
			Help:      "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "app_info",
			Help:      "Application version and build information",
		},
		[]string{"version", "gateway"},
	)
)

// RecordSettlement records one acknowledged settlement.
func RecordSettlement(outcome string, duration time.Duration) {
	SettlementOutcomes.WithLabelValues(outcome).Inc()
	SettlementDuration.Observe(duration.Seconds())
}

// RecordSignatureFailure counts a rejected parameter set. reason must be one
// of the fixed gateway reasons, never caller input.
func RecordSignatureFailure(reason string) {
	SignatureFailures.WithLabelValues(reason).Inc()
}

// RecordDuplicateDelivery counts a delivery the journal had already seen.
func RecordDuplicateDelivery() {
	WebhookDuplicates.Inc()
}

// RecordProvisioning records a provisioning attempt.
func RecordProvisioning(result string) {
	ProvisioningTotal.WithLabelValues(result).Inc()
}

// RecordCounterFailure records a failed best-effort counter update.
func RecordCounterFailure(counter string) {
	CounterUpdateFailures.WithLabelValues(counter).Inc()
}

// SetProvisioningQueueSize publishes the remediation backlog.
func SetProvisioningQueueSize(n int) {
	ProvisioningQueueSize.Set(float64(n))
}

// RecordEventPublish records an event bus publish.
func RecordEventPublish(err error) {
	if err != nil {
		EventsPublished.WithLabelValues("failure").Inc()
		return
	}
	EventsPublished.WithLabelValues("success").Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit counts a request rejected by the rate limiter.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordBreakerState publishes a circuit breaker state change. state follows
// gobreaker's numbering: 0 closed, 1 half-open, 2 open.
func RecordBreakerState(name, from, to string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordBreakerRequest records the result of a call through a breaker.
func RecordBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}
