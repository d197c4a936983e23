// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

// Package config loads Coursepay configuration.
//
// Configuration is built exactly once at process start (defaults, then an
// optional YAML file, then environment variables) and passed by pointer into
// every constructor. Nothing in the settlement path reads the environment.
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//	adapter, err := gateway.New(&cfg.Gateway)
package config

import (
	"time"
)

// Config holds all application configuration. It is immutable after Load.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Gateway      GatewayConfig      `koanf:"gateway"`
	Database     DatabaseConfig     `koanf:"database"`
	Journal      JournalConfig      `koanf:"journal"`
	NATS         NATSConfig         `koanf:"nats"`
	Provisioning ProvisioningConfig `koanf:"provisioning"`
	Catalog      CatalogConfig      `koanf:"catalog"`
	Security     SecurityConfig     `koanf:"security"`
	Supervisor   SupervisorConfig   `koanf:"supervisor"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production

	// WebhookTimeout bounds a single reconciliation. When exceeded the gateway
	// receives a retryable acknowledgement and is expected to redeliver.
	WebhookTimeout time.Duration `koanf:"webhook_timeout"`

	// MaxBodyBytes limits POSTed webhook bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
}

// GatewayConfig holds the payment gateway merchant settings.
//
// Environment Variables:
//   - GATEWAY_MODE: hmac (real gateway) or mock (development only)
//   - GATEWAY_MERCHANT_CODE, GATEWAY_HASH_SECRET: merchant credentials
//   - GATEWAY_BASE_URL: hosted payment page
//   - GATEWAY_RETURN_URL, GATEWAY_CALLBACK_URL: default redirect and IPN targets
//   - FRONTEND_RESULT_URL: where the return endpoint sends the browser
type GatewayConfig struct {
	Mode         string `koanf:"mode"`
	MerchantCode string `koanf:"merchant_code"`
	HashSecret   string `koanf:"hash_secret"`
	BaseURL      string `koanf:"base_url"`
	Version      string `koanf:"version"`
	Command      string `koanf:"command"`
	CurrencyCode string `koanf:"currency_code"`
	Locale       string `koanf:"locale"`
	OrderType    string `koanf:"order_type"`

	// TimeZone is the IANA zone the gateway expects timestamps in.
	TimeZone string `koanf:"time_zone"`

	ReturnURL         string `koanf:"return_url"`
	CallbackURL       string `koanf:"callback_url"`
	FrontendResultURL string `koanf:"frontend_result_url"`
	ExpireMinutes     int    `koanf:"expire_minutes"`

	// AmountTolerance is the largest accepted difference, in currency units,
	// between the settled and the expected amount.
	AmountTolerance float64 `koanf:"amount_tolerance"`

	// MockPageURL is used only when Mode is "mock".
	MockPageURL string `koanf:"mock_page_url"`
}

// DatabaseConfig holds DuckDB settings for the order ledger.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = DuckDB default
}

// JournalConfig holds the BadgerDB delivery journal settings.
type JournalConfig struct {
	Path        string        `koanf:"path"`
	InMemory    bool          `koanf:"in_memory"`
	DeliveryTTL time.Duration `koanf:"delivery_ttl"`
	GCInterval  time.Duration `koanf:"gc_interval"`
}

// NATSConfig holds settlement event publishing settings.
type NATSConfig struct {
	// Enabled publishes settlement events to NATS JetStream. When false an
	// in-process channel is used and events are only visible to local subscribers.
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`
	TopicPrefix    string `koanf:"topic_prefix"`

	CircuitBreakerMaxFailures uint32        `koanf:"circuit_breaker_max_failures"`
	CircuitBreakerTimeout     time.Duration `koanf:"circuit_breaker_timeout"`
}

// ProvisioningConfig guards the entitlement collaborator.
type ProvisioningConfig struct {
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
}

// CatalogConfig lists the products payers can buy. Prices are read only
// from here; a checkout request never sets the amount charged.
//
//	catalog:
//	  products:
//	    - id: course-101
//	      name: Intro to Go
//	      price: 250000
type CatalogConfig struct {
	Products []ProductConfig `koanf:"products"`
}

// ProductConfig is one catalog entry. An empty Currency uses the gateway
// currency code.
type ProductConfig struct {
	ID       string  `koanf:"id"`
	Name     string  `koanf:"name"`
	Price    float64 `koanf:"price"`
	Currency string  `koanf:"currency"`
}

// SecurityConfig holds authentication, authorization and rate limiting.
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	TokenTimeout      time.Duration `koanf:"token_timeout"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	CasbinModelPath   string        `koanf:"casbin_model_path"`
	CasbinPolicyPath  string        `koanf:"casbin_policy_path"`
}

// SupervisorConfig holds suture restart policy.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load builds the configuration from defaults, file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
