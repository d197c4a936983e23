// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package journal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/logging"
	"github.com/tomtom215/coursepay/internal/models"
)

const (
	deliveryPrefix = "delivery:"
	failurePrefix  = "provfail:"

	gcDiscardRatio = 0.5
)

// BadgerJournal is the BadgerDB-backed Journal used in production.
type BadgerJournal struct {
	db     *badger.DB
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the journal described by cfg.
func Open(cfg *config.JournalConfig) (*BadgerJournal, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = true
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	ttl := cfg.DeliveryTTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("delivery_ttl", ttl).
		Msg("Delivery journal opened")

	return &BadgerJournal{db: db, ttl: ttl}, nil
}

func (j *BadgerJournal) checkOpen() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrJournalClosed
	}
	return nil
}

// RecordDelivery implements Journal. The read and write happen in one
// Badger transaction, so two concurrent identical deliveries cannot both
// be reported as first-seen.
func (j *BadgerJournal) RecordDelivery(_ context.Context, d *Delivery) (bool, error) {
	if err := j.checkOpen(); err != nil {
		return false, err
	}

	key := []byte(deliveryPrefix + d.GatewayRef + ":" + d.Digest)
	var duplicate bool

	err := j.db.Update(func(txn *badger.Txn) error {
		now := time.Now().UTC()
		item, err := txn.Get(key)
		switch {
		case err == nil:
			var existing Delivery
			if valErr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			}); valErr != nil {
				return valErr
			}
			existing.Count++
			existing.LastSeen = now
			*d = existing
			duplicate = true
		case errors.Is(err, badger.ErrKeyNotFound):
			d.FirstSeen, d.LastSeen, d.Count = now, now, 1
		default:
			return err
		}

		data, err := json.Marshal(d)
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(j.ttl))
	})
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent identical delivery committed first.
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("record delivery: %w", err)
	}
	return duplicate, nil
}

// RecordProvisioningFailure implements Journal.
func (j *BadgerJournal) RecordProvisioningFailure(_ context.Context, f *models.ProvisioningFailure) error {
	if err := j.checkOpen(); err != nil {
		return err
	}
	if f.FailedAt.IsZero() {
		f.FailedAt = time.Now().UTC()
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode provisioning failure: %w", err)
	}
	if err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(failurePrefix+f.GatewayRef), data)
	}); err != nil {
		return fmt.Errorf("record provisioning failure: %w", err)
	}
	return nil
}

// GetProvisioningFailure implements Journal.
func (j *BadgerJournal) GetProvisioningFailure(_ context.Context, ref string) (*models.ProvisioningFailure, error) {
	if err := j.checkOpen(); err != nil {
		return nil, err
	}
	var f models.ProvisioningFailure
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(failurePrefix + ref))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &f)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrFailureNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get provisioning failure: %w", err)
	}
	return &f, nil
}

// ListProvisioningFailures implements Journal.
func (j *BadgerJournal) ListProvisioningFailures(_ context.Context) ([]*models.ProvisioningFailure, error) {
	if err := j.checkOpen(); err != nil {
		return nil, err
	}
	var out []*models.ProvisioningFailure
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(failurePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var f models.ProvisioningFailure
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &f)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Skipping unreadable provisioning failure")
				continue
			}
			out = append(out, &f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list provisioning failures: %w", err)
	}
	sortFailures(out)
	return out, nil
}

// ResolveProvisioningFailure implements Journal.
func (j *BadgerJournal) ResolveProvisioningFailure(_ context.Context, ref string) error {
	if err := j.checkOpen(); err != nil {
		return err
	}
	key := []byte(failurePrefix + ref)
	err := j.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrFailureNotFound
	}
	if err != nil {
		return fmt.Errorf("resolve provisioning failure: %w", err)
	}
	return nil
}

// RunGC runs value log GC until Badger reports nothing left to rewrite.
func (j *BadgerJournal) RunGC(ctx context.Context) error {
	if err := j.checkOpen(); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := j.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run journal GC: %w", err)
		}
	}
}

// Close implements Journal.
func (j *BadgerJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
