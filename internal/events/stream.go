// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// duplicateWindow must exceed the longest gateway retry schedule so a
// redelivered settlement never produces a second event.
const duplicateWindow = 24 * time.Hour

// StreamManager is the subset of jetstream.JetStream used by EnsureStream.
type StreamManager interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamName returns the JetStream stream name for prefix.
func StreamName(prefix string) string {
	name := strings.ToUpper(strings.NewReplacer(".", "_", "*", "_", ">", "_").Replace(prefix))
	if name == "" {
		name = "PAYMENTS"
	}
	return "COURSEPAY_" + name
}

// StreamConfig returns the stream definition for events under prefix.
func StreamConfig(prefix string) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:       StreamName(prefix),
		Subjects:   []string{prefix + ".>"},
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     30 * 24 * time.Hour,
		Duplicates: duplicateWindow,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}
}

// EnsureStream creates the event stream or updates it in place.
func EnsureStream(ctx context.Context, js StreamManager, prefix string) error {
	cfg := StreamConfig(prefix)

	_, err := js.Stream(ctx, cfg.Name)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("update stream %s: %w", cfg.Name, err)
		}
		return nil
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		return nil
	default:
		return fmt.Errorf("check stream %s: %w", cfg.Name, err)
	}
}

// ProvisionStream connects to url and ensures the event stream exists.
func ProvisionStream(ctx context.Context, url, prefix string) error {
	nc, err := natsgo.Connect(url, natsgo.Name("coursepay-stream-init"))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	return EnsureStream(ctx, js, prefix)
}
