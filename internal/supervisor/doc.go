// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

/*
Package supervisor runs Coursepay's long-lived services under suture v4.

	RootSupervisor ("coursepay")
	├── DataSupervisor ("data-layer")
	│   ├── journal-gc
	│   └── audit-retention
	├── MessagingSupervisor ("messaging-layer")
	│   └── embedded-nats (if nats.embedded_server)
	└── APISupervisor ("api-layer")
	    └── http-server

A crash in housekeeping or messaging never takes the HTTP server down, and
settlement correctness never depends on either: the journal and the event
bus are side channels of the order ledger.

Supervisor lifecycle events are logged through sutureslog, bridged to
zerolog by logging.NewSlogLogger.
*/
package supervisor
