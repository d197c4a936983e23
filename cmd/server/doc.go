// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

/*
Package main is the entry point for the Coursepay server.

Coursepay settles course purchases made through a hosted payment gateway:
it opens orders, signs payment URLs, verifies and reconciles the gateway's
settlement webhooks, and grants course access exactly once per paid order.

# Application Architecture

	RootSupervisor ("coursepay")
	├── DataSupervisor ("data-layer")
	│   ├── journal-gc
	│   └── audit-retention
	├── MessagingSupervisor ("messaging-layer")
	│   └── embedded-nats (optional)
	└── APISupervisor ("api-layer")
	    └── http-server

Component initialization order:

 1. Configuration: Koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog with JSON/console output
 3. Order ledger: DuckDB
 4. Delivery journal: BadgerDB
 5. Audit log: DuckDB table with async writer
 6. Event bus: Watermill over NATS JetStream, or an in-process channel
 7. Settlement engine, provisioning and checkout
 8. Authentication (JWT) and authorization (Casbin)
 9. Supervisor tree and HTTP server

# Configuration

Environment variables map onto config keys, for example:
  - GATEWAY_MODE: hmac or mock
  - GATEWAY_MERCHANT_CODE, GATEWAY_HASH_SECRET: merchant credentials
  - JWT_SECRET: 32+ character secret for token signing
  - NATS_ENABLED, NATS_EMBEDDED_SERVER: event publishing

The product catalog is read from catalog.products in config.yaml; order
prices always come from it.

# API Documentation

The OpenAPI document is served at /swagger/doc.json and the UI at
/swagger/index.html. Annotations live on the handlers in internal/api and
the general API info in docs.go.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains
in-flight requests, then the journal, audit log, event bus and database
are closed in reverse order of creation.
*/
package main
