// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/logging"
)

// EmbeddedServer is an in-process NATS JetStream server for single-node
// deployments without an external broker.
type EmbeddedServer struct {
	server *server.Server
}

// NewEmbeddedServer starts a JetStream-enabled server. Port -1 picks a
// random free port.
func NewEmbeddedServer(cfg *config.NATSConfig, port int) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName:         "coursepay-events",
		Host:               "127.0.0.1",
		Port:               port,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		NoLog:              true,
		NoSigs:             true,
		MaxPayload:         1 << 20,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	logging.Info().Str("url", ns.ClientURL()).Str("store_dir", cfg.StoreDir).Msg("Embedded NATS server started")
	return &EmbeddedServer{server: ns}, nil
}

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.server.ClientURL()
}

// Serve blocks until ctx is done, then shuts the server down. It lets the
// server run as a supervised service.
func (s *EmbeddedServer) Serve(ctx context.Context) error {
	<-ctx.Done()
	s.Shutdown()
	return ctx.Err()
}

// Shutdown stops the server and waits for it to exit.
func (s *EmbeddedServer) Shutdown() {
	s.server.Shutdown()
	s.server.WaitForShutdown()
}

// IsRunning reports server health.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// String names the service in supervisor logs.
func (s *EmbeddedServer) String() string {
	return "embedded-nats"
}
