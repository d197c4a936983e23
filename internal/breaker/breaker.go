// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

// Package breaker wraps sony/gobreaker with the logging and Prometheus
// reporting shared by every guarded collaborator.
package breaker

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/coursepay/internal/logging"
	"github.com/tomtom215/coursepay/internal/metrics"
)

// Settings configures a Breaker.
type Settings struct {
	Name string

	// MaxFailures consecutive failures open the circuit.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before a half-open trial call.
	Timeout time.Duration

	// Interval resets the failure counts while closed. Zero never resets.
	Interval time.Duration

	// IsSuccessful classifies errors that must not count as failures
	// (for example "not found"). Nil counts every error.
	IsSuccessful func(err error) bool
}

// Breaker is a named circuit breaker.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[interface{}]
}

// New creates a Breaker.
func New(s Settings) *Breaker {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(0)

	settings := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.RecordBreakerState(name, from.String(), to.String(), int(to))
		},
	}
	if s.IsSuccessful != nil {
		settings.IsSuccessful = s.IsSuccessful
	}

	return &Breaker{
		name: s.Name,
		cb:   gobreaker.NewCircuitBreaker[interface{}](settings),
	}
}

// Execute runs fn through the breaker. While open, fn is not called and the
// returned error satisfies IsOpen.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	switch {
	case err == nil:
		metrics.RecordBreakerRequest(b.name, "success")
	case IsOpen(err):
		metrics.RecordBreakerRequest(b.name, "rejected")
	default:
		metrics.RecordBreakerRequest(b.name, "failure")
	}
	return err
}

// State returns the breaker state name: closed, half-open or open.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// IsOpen reports whether err is a rejection by an open or saturated breaker.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
