// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/models"
)

// journals returns one of each implementation so every behavior is checked
// against both.
func journals(t *testing.T) map[string]Journal {
	t.Helper()

	bj, err := Open(&config.JournalConfig{InMemory: true, DeliveryTTL: time.Hour})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = bj.Close() })

	return map[string]Journal{
		"memory": NewMemoryJournal(time.Hour),
		"badger": bj,
	}
}

func TestDigest(t *testing.T) {
	a := Digest("R1", "abc")
	if a != Digest("R1", "abc") {
		t.Error("digest must be deterministic")
	}
	if a == Digest("R1", "abd") || a == Digest("R2", "abc") {
		t.Error("digest must change with ref or signature")
	}
}

func TestRecordDelivery_DetectsDuplicates(t *testing.T) {
	ctx := context.Background()
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			d := &Delivery{GatewayRef: "R1", Digest: Digest("R1", "sig"), Source: "webhook"}
			dup, err := j.RecordDelivery(ctx, d)
			if err != nil || dup {
				t.Fatalf("first delivery: dup=%v err=%v", dup, err)
			}
			if d.Count != 1 || d.FirstSeen.IsZero() {
				t.Errorf("first delivery = %+v", d)
			}

			again := &Delivery{GatewayRef: "R1", Digest: Digest("R1", "sig"), Source: "webhook"}
			dup, err = j.RecordDelivery(ctx, again)
			if err != nil || !dup {
				t.Fatalf("second delivery: dup=%v err=%v", dup, err)
			}
			if again.Count != 2 {
				t.Errorf("count = %d, want 2", again.Count)
			}

			other := &Delivery{GatewayRef: "R1", Digest: Digest("R1", "other"), Source: "return"}
			if dup, _ := j.RecordDelivery(ctx, other); dup {
				t.Error("different signature must not be a duplicate")
			}
		})
	}
}

func TestRecordDelivery_ConcurrentFirstSeenOnce(t *testing.T) {
	ctx := context.Background()
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			const workers = 20
			var (
				wg    sync.WaitGroup
				mu    sync.Mutex
				first int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					dup, err := j.RecordDelivery(ctx, &Delivery{GatewayRef: "R9", Digest: "d"})
					if err != nil {
						t.Errorf("RecordDelivery: %v", err)
						return
					}
					if !dup {
						mu.Lock()
						first++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			if first != 1 {
				t.Errorf("first-seen reported %d times, want 1", first)
			}
		})
	}
}

func TestMemoryJournal_DeliveryExpiry(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	if dup, _ := j.RecordDelivery(ctx, &Delivery{GatewayRef: "R1", Digest: "d"}); dup {
		t.Fatal("unexpected duplicate")
	}
	now = now.Add(2 * time.Minute)
	if err := j.RunGC(ctx); err != nil {
		t.Fatalf("RunGC: %v", err)
	}
	if len(j.deliveries) != 0 {
		t.Errorf("expired deliveries kept: %d", len(j.deliveries))
	}
	if dup, _ := j.RecordDelivery(ctx, &Delivery{GatewayRef: "R1", Digest: "d"}); dup {
		t.Error("expired delivery must be first-seen again")
	}
}

func TestProvisioningFailureQueue(t *testing.T) {
	ctx := context.Background()
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			for i, ref := range []string{"R3", "R1", "R2"} {
				err := j.RecordProvisioningFailure(ctx, &models.ProvisioningFailure{
					GatewayRef: ref,
					OrderID:    "order-" + ref,
					PayerID:    "payer-1",
					ProductID:  "course-101",
					Error:      "store unavailable",
					FailedAt:   base.Add(time.Duration(i) * time.Minute),
				})
				if err != nil {
					t.Fatalf("RecordProvisioningFailure: %v", err)
				}
			}

			list, err := j.ListProvisioningFailures(ctx)
			if err != nil {
				t.Fatalf("ListProvisioningFailures: %v", err)
			}
			if len(list) != 3 || list[0].GatewayRef != "R3" || list[2].GatewayRef != "R2" {
				t.Errorf("list order = %v", refs(list))
			}

			got, err := j.GetProvisioningFailure(ctx, "R1")
			if err != nil || got.OrderID != "order-R1" {
				t.Errorf("GetProvisioningFailure = %+v, %v", got, err)
			}

			if err := j.ResolveProvisioningFailure(ctx, "R1"); err != nil {
				t.Fatalf("ResolveProvisioningFailure: %v", err)
			}
			if _, err := j.GetProvisioningFailure(ctx, "R1"); !errors.Is(err, ErrFailureNotFound) {
				t.Errorf("err = %v, want ErrFailureNotFound", err)
			}
			if err := j.ResolveProvisioningFailure(ctx, "R1"); !errors.Is(err, ErrFailureNotFound) {
				t.Errorf("second resolve err = %v, want ErrFailureNotFound", err)
			}

			if err := j.RunGC(ctx); err != nil {
				t.Errorf("RunGC: %v", err)
			}
		})
	}
}

func TestClosedJournal(t *testing.T) {
	ctx := context.Background()
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			if err := j.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if _, err := j.RecordDelivery(ctx, &Delivery{GatewayRef: "R1"}); !errors.Is(err, ErrJournalClosed) {
				t.Errorf("err = %v, want ErrJournalClosed", err)
			}
			if _, err := j.ListProvisioningFailures(ctx); !errors.Is(err, ErrJournalClosed) {
				t.Errorf("err = %v, want ErrJournalClosed", err)
			}
		})
	}
}

func TestOpen_OnDisk(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.JournalConfig{Path: dir, DeliveryTTL: time.Hour}

	j, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	if err := j.RecordProvisioningFailure(ctx, &models.ProvisioningFailure{GatewayRef: "R1"}); err != nil {
		t.Fatalf("RecordProvisioningFailure: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetProvisioningFailure(ctx, "R1"); err != nil {
		t.Errorf("entry lost across restart: %v", err)
	}
}

func refs(fs []*models.ProvisioningFailure) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.GatewayRef
	}
	return out
}
