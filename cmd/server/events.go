// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/events"
	"github.com/tomtom215/coursepay/internal/logging"
)

// eventBus is the wired event publishing stack.
type eventBus struct {
	Publisher *events.Publisher

	// Server is set only when an embedded NATS server was started.
	Server *events.EmbeddedServer
}

// Close stops publishing, then the embedded server if any.
func (b *eventBus) Close() {
	if err := b.Publisher.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing event publisher")
	}
	if b.Server != nil && b.Server.IsRunning() {
		b.Server.Shutdown()
	}
}

// initEvents builds the publisher. With NATS disabled events stay in
// process; with it enabled the JetStream stream is provisioned first so no
// settlement event is published into the void.
func initEvents(ctx context.Context, cfg *config.NATSConfig) (*eventBus, error) {
	logger := events.WatermillLogger()

	if !cfg.Enabled {
		logging.Info().Msg("NATS disabled, settlement events stay in process")
		return &eventBus{Publisher: events.NewPublisher(events.NewChannelPubSub(logger), cfg)}, nil
	}

	bus := &eventBus{}
	url := cfg.URL
	if cfg.EmbeddedServer {
		srv, err := events.NewEmbeddedServer(cfg, 4222)
		if err != nil {
			return nil, err
		}
		bus.Server = srv
		url = srv.ClientURL()
	}

	if err := events.ProvisionStream(ctx, url, cfg.TopicPrefix); err != nil {
		bus.shutdownServer()
		return nil, fmt.Errorf("provision event stream: %w", err)
	}

	pub, err := events.NewNATSPublisher(url, logger)
	if err != nil {
		bus.shutdownServer()
		return nil, err
	}
	bus.Publisher = events.NewPublisher(pub, cfg)

	logging.Info().Str("url", url).Str("prefix", cfg.TopicPrefix).Bool("embedded", cfg.EmbeddedServer).Msg("Event publishing via NATS JetStream")
	return bus, nil
}

func (b *eventBus) shutdownServer() {
	if b.Server != nil {
		b.Server.Shutdown()
	}
}
