// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package services

import (
	"context"
	"time"

	"github.com/tomtom215/coursepay/internal/logging"
)

// DefaultGCInterval applies when no interval is configured.
const DefaultGCInterval = 10 * time.Minute

// Collector reclaims space. journal.Journal satisfies it.
type Collector interface {
	RunGC(ctx context.Context) error
}

// JournalGCService periodically runs journal garbage collection so expired
// deliveries stop occupying disk.
type JournalGCService struct {
	collector Collector
	interval  time.Duration
}

// NewJournalGCService creates the service.
func NewJournalGCService(c Collector, interval time.Duration) *JournalGCService {
	if interval <= 0 {
		interval = DefaultGCInterval
	}
	return &JournalGCService{collector: c, interval: interval}
}

// Serve implements suture.Service. GC errors are logged and retried on the
// next tick rather than restarting the service.
func (s *JournalGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.collector.RunGC(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logging.Warn().Err(err).Msg("Journal GC failed")
				continue
			}
			logging.Debug().Dur("duration", time.Since(start)).Msg("Journal GC completed")
		}
	}
}

// String implements fmt.Stringer for suture logs.
func (s *JournalGCService) String() string {
	return "journal-gc"
}
