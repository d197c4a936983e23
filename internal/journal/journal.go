// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

// Package journal keeps two small durable records next to the order ledger:
//
//   - a delivery log of every authenticated gateway notification, kept for a
//     configurable TTL so repeated deliveries can be observed and counted;
//   - the provisioning remediation queue, holding settled orders whose
//     entitlement could not be created.
//
// The delivery log is observational. Idempotency of settlement is decided by
// the order ledger alone, so losing the journal never causes a double grant.
package journal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/coursepay/internal/models"
)

var (
	// ErrJournalClosed is returned after Close.
	ErrJournalClosed = errors.New("journal is closed")

	// ErrFailureNotFound is returned when no remediation entry exists.
	ErrFailureNotFound = errors.New("provisioning failure not found")
)

// Delivery is one authenticated gateway notification.
type Delivery struct {
	GatewayRef string    `json:"gateway_ref"`
	Digest     string    `json:"digest"`
	Source     string    `json:"source"` // webhook, return, mock
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	Count      int       `json:"count"`
}

// Journal is the delivery log plus remediation queue.
type Journal interface {
	// RecordDelivery stores d and reports whether an identical delivery had
	// already been recorded within the TTL.
	RecordDelivery(ctx context.Context, d *Delivery) (duplicate bool, err error)

	// RecordProvisioningFailure enqueues or refreshes a remediation entry.
	RecordProvisioningFailure(ctx context.Context, f *models.ProvisioningFailure) error

	// GetProvisioningFailure returns the entry for ref.
	GetProvisioningFailure(ctx context.Context, ref string) (*models.ProvisioningFailure, error)

	// ListProvisioningFailures returns all entries, oldest first.
	ListProvisioningFailures(ctx context.Context) ([]*models.ProvisioningFailure, error)

	// ResolveProvisioningFailure removes the entry for ref.
	ResolveProvisioningFailure(ctx context.Context, ref string) error

	// RunGC reclaims space held by expired deliveries.
	RunGC(ctx context.Context) error

	Close() error
}

// Digest fingerprints a delivery by its signature, which covers every
// parameter the gateway sent.
func Digest(ref, signature string) string {
	sum := sha256.Sum256([]byte(ref + "\x00" + signature))
	return hex.EncodeToString(sum[:])
}

// MemoryJournal is an in-memory Journal for tests and single-process
// development runs.
type MemoryJournal struct {
	mu         sync.Mutex
	ttl        time.Duration
	deliveries map[string]*Delivery
	expires    map[string]time.Time
	failures   map[string]*models.ProvisioningFailure
	closed     bool
	now        func() time.Time
}

// NewMemoryJournal creates a MemoryJournal retaining deliveries for ttl.
func NewMemoryJournal(ttl time.Duration) *MemoryJournal {
	return &MemoryJournal{
		ttl:        ttl,
		deliveries: make(map[string]*Delivery),
		expires:    make(map[string]time.Time),
		failures:   make(map[string]*models.ProvisioningFailure),
		now:        time.Now,
	}
}

// RecordDelivery implements Journal.
func (j *MemoryJournal) RecordDelivery(_ context.Context, d *Delivery) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return false, ErrJournalClosed
	}

	now := j.now()
	key := d.GatewayRef + ":" + d.Digest
	if existing, ok := j.deliveries[key]; ok && now.Before(j.expires[key]) {
		existing.Count++
		existing.LastSeen = now
		*d = *existing
		return true, nil
	}

	d.FirstSeen, d.LastSeen, d.Count = now, now, 1
	stored := *d
	j.deliveries[key] = &stored
	j.expires[key] = now.Add(j.ttl)
	return false, nil
}

// RecordProvisioningFailure implements Journal.
func (j *MemoryJournal) RecordProvisioningFailure(_ context.Context, f *models.ProvisioningFailure) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJournalClosed
	}
	if f.FailedAt.IsZero() {
		f.FailedAt = j.now().UTC()
	}
	stored := *f
	j.failures[f.GatewayRef] = &stored
	return nil
}

// GetProvisioningFailure implements Journal.
func (j *MemoryJournal) GetProvisioningFailure(_ context.Context, ref string) (*models.ProvisioningFailure, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, ErrJournalClosed
	}
	f, ok := j.failures[ref]
	if !ok {
		return nil, ErrFailureNotFound
	}
	out := *f
	return &out, nil
}

// ListProvisioningFailures implements Journal.
func (j *MemoryJournal) ListProvisioningFailures(_ context.Context) ([]*models.ProvisioningFailure, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, ErrJournalClosed
	}
	out := make([]*models.ProvisioningFailure, 0, len(j.failures))
	for _, f := range j.failures {
		c := *f
		out = append(out, &c)
	}
	sortFailures(out)
	return out, nil
}

// ResolveProvisioningFailure implements Journal.
func (j *MemoryJournal) ResolveProvisioningFailure(_ context.Context, ref string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJournalClosed
	}
	if _, ok := j.failures[ref]; !ok {
		return ErrFailureNotFound
	}
	delete(j.failures, ref)
	return nil
}

// RunGC drops expired deliveries.
func (j *MemoryJournal) RunGC(_ context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJournalClosed
	}
	now := j.now()
	for k, exp := range j.expires {
		if now.After(exp) {
			delete(j.expires, k)
			delete(j.deliveries, k)
		}
	}
	return nil
}

// Close implements Journal.
func (j *MemoryJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

func sortFailures(fs []*models.ProvisioningFailure) {
	sort.Slice(fs, func(a, b int) bool {
		if fs[a].FailedAt.Equal(fs[b].FailedAt) {
			return fs[a].GatewayRef < fs[b].GatewayRef
		}
		return fs[a].FailedAt.Before(fs[b].FailedAt)
	})
}
