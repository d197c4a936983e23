// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/coursepay/internal/logging"
)

// Config holds configuration for the audit logger.
type Config struct {
	// MinSeverity filters out events below this level.
	MinSeverity Severity

	// RetentionDays is how long audit events are kept.
	RetentionDays int

	// CleanupInterval is how often retention cleanup runs.
	CleanupInterval time.Duration

	// BufferSize is the size of the async write buffer.
	BufferSize int

	// LogToStdout also writes each event through the application logger.
	LogToStdout bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MinSeverity:     SeverityInfo,
		RetentionDays:   365,
		CleanupInterval: 24 * time.Hour,
		BufferSize:      1000,
	}
}

var severityOrder = map[Severity]int{
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityError:    3,
	SeverityCritical: 4,
}

// Logger writes audit events asynchronously so the settlement path never
// waits on the audit store.
type Logger struct {
	config    *Config
	store     Store
	eventChan chan *Event
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewLogger creates a logger writing to store and starts its writer.
func NewLogger(store Store, config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}

	l := &Logger{
		config:    config,
		store:     store,
		eventChan: make(chan *Event, config.BufferSize),
		stopChan:  make(chan struct{}),
	}
	l.wg.Add(1)
	go l.asyncWriter()
	return l
}

func (l *Logger) asyncWriter() {
	defer l.wg.Done()
	for {
		select {
		case <-l.stopChan:
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		case event := <-l.eventChan:
			l.writeEvent(event)
		}
	}
}

func (l *Logger) writeEvent(event *Event) {
	if l.config.LogToStdout {
		if data, err := json.Marshal(event); err == nil {
			logging.Info().RawJSON("event", data).Msg("Audit event")
		}
	}
	if l.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Save(ctx, event); err != nil {
		logging.Error().Err(err).Str("event_id", event.ID).Msg("Failed to save audit event")
	}
}

// Log queues event for writing. Events are dropped with a warning when the
// buffer is full or the logger is closed.
func (l *Logger) Log(event *Event) {
	if event == nil || severityOrder[event.Severity] < severityOrder[l.config.MinSeverity] {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Outcome == "" {
		event.Outcome = OutcomeSuccess
	}

	select {
	case <-l.stopChan:
		logging.Warn().Str("event_id", event.ID).Msg("Audit logger closed, dropping event")
	case l.eventChan <- event:
	default:
		logging.Warn().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("Audit event buffer full, dropping event")
	}
}

// Close drains queued events and stops the writer.
func (l *Logger) Close() error {
	l.stopOnce.Do(func() { close(l.stopChan) })
	l.wg.Wait()
	return nil
}

// Cleanup deletes events older than the retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.store == nil || l.config.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -l.config.RetentionDays)
	n, err := l.store.Delete(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logging.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Audit retention cleanup")
	}
	return n, nil
}

// Serve runs retention cleanup until ctx is done. It satisfies
// suture.Service.
func (l *Logger) Serve(ctx context.Context) error {
	interval := l.config.CleanupInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := l.Cleanup(ctx); err != nil {
				logging.Error().Err(err).Msg("Audit retention cleanup failed")
			}
		}
	}
}

// String names the cleanup service in supervisor logs.
func (l *Logger) String() string { return "audit-retention" }

// Store returns the underlying store for queries.
func (l *Logger) Store() Store { return l.store }

// NewPaymentEvent builds an event about a gateway reference. metadata is
// JSON-encoded; a nil map leaves Metadata empty.
func NewPaymentEvent(t EventType, severity Severity, outcome Outcome, ref, message string, metadata map[string]string) *Event {
	e := &Event{
		Type:       t,
		Severity:   severity,
		Outcome:    outcome,
		Actor:      Actor{ID: "payment-gateway", Type: ActorGateway},
		GatewayRef: ref,
		Action:     string(t),
		Message:    message,
	}
	if len(metadata) > 0 {
		if data, err := json.Marshal(metadata); err == nil {
			e.Metadata = data
		}
	}
	return e
}
