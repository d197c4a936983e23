// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/tomtom215/coursepay/docs" // registers the OpenAPI document served at /swagger/
	"github.com/tomtom215/coursepay/internal/api"
	"github.com/tomtom215/coursepay/internal/audit"
	"github.com/tomtom215/coursepay/internal/auth"
	"github.com/tomtom215/coursepay/internal/authz"
	"github.com/tomtom215/coursepay/internal/catalog"
	"github.com/tomtom215/coursepay/internal/checkout"
	"github.com/tomtom215/coursepay/internal/config"
	"github.com/tomtom215/coursepay/internal/database"
	"github.com/tomtom215/coursepay/internal/gateway"
	"github.com/tomtom215/coursepay/internal/journal"
	"github.com/tomtom215/coursepay/internal/logging"
	"github.com/tomtom215/coursepay/internal/provisioning"
	"github.com/tomtom215/coursepay/internal/settlement"
	"github.com/tomtom215/coursepay/internal/supervisor"
	"github.com/tomtom215/coursepay/internal/supervisor/services"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("gateway_mode", cfg.Gateway.Mode).
		Str("db_path", cfg.Database.Path).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("Starting Coursepay with supervisor tree")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize order ledger")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	jrnl, err := journal.Open(&cfg.Journal)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open delivery journal")
	}
	defer func() {
		if err := jrnl.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing journal")
		}
	}()

	auditStore := audit.NewDuckDBStore(db.Conn())
	if err := auditStore.CreateTable(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create audit table")
	}
	auditLogger := audit.NewLogger(auditStore, audit.DefaultConfig())
	defer func() {
		if err := auditLogger.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit logger")
		}
	}()

	bus, err := initEvents(ctx, &cfg.NATS)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event bus")
	}
	defer bus.Close()

	adapter, err := gateway.New(&cfg.Gateway)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize payment gateway")
	}
	if cfg.Gateway.Mode == config.GatewayModeMock {
		logging.Warn().Msg("Mock payment gateway enabled: payments are simulated")
	}

	provisioner := provisioning.New(db, &cfg.Provisioning)
	reconciler, err := settlement.New(settlement.Deps{
		Ledger:      db,
		Gateway:     adapter,
		Provisioner: provisioner,
		Journal:     jrnl,
		Audit:       auditLogger,
		Events:      bus.Publisher,
	}, cfg.Gateway.AmountTolerance)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize settlement engine")
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	enforcer, err := authz.NewEnforcer(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization")
	}

	prices := catalog.NewStatic(&cfg.Catalog, cfg.Gateway.CurrencyCode)
	logging.Info().Int("products", len(prices.Products())).Msg("Catalog loaded")

	handler := api.NewHandler(api.HandlerDeps{
		Config:            cfg,
		Orders:            db,
		Catalog:           prices,
		Gateway:           adapter,
		Settlement:        reconciler,
		Checkout:          checkout.New(db, prices, adapter, auditLogger),
		Audit:             auditStore,
		EventsState:       bus.Publisher.State,
		ProvisioningState: provisioner.BreakerState,
		JournalReady:      true,
	})
	router := api.NewRouter(
		handler,
		api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security)),
		jwtManager,
		authz.NewMiddleware(enforcer, auditLogger),
		cfg.Server.MaxBodyBytes,
	)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(&cfg.Supervisor))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddDataService(services.NewJournalGCService(jrnl, cfg.Journal.GCInterval))
	tree.AddDataService(auditLogger)
	if bus.Server != nil {
		tree.AddMessagingService(bus.Server)
	}
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Supervisor.ShutdownTimeout))

	logging.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}
	logging.Info().Msg("Coursepay stopped")
}
