// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/coursepay/config.yaml",
	"/etc/coursepay/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			Timeout:        30 * time.Second,
			Environment:    "development",
			WebhookTimeout: 10 * time.Second,
			MaxBodyBytes:   64 << 10,
		},
		Gateway: GatewayConfig{
			Mode:              "hmac",
			BaseURL:           "https://sandbox.gateway.example/paymentv2/vpcpay.html",
			Version:           "2.1.0",
			Command:           "pay",
			CurrencyCode:      "VND",
			Locale:            "vn",
			OrderType:         "other",
			TimeZone:          "Asia/Ho_Chi_Minh",
			ExpireMinutes:     15,
			AmountTolerance:   0.01,
			FrontendResultURL: "http://localhost:3000/payment/result",
			MockPageURL:       "http://localhost:8080/mock-gateway/pay",
		},
		Database: DatabaseConfig{
			Path:      "/data/coursepay.duckdb",
			MaxMemory: "512MB",
		},
		Journal: JournalConfig{
			Path:        "/data/journal",
			DeliveryTTL: 72 * time.Hour,
			GCInterval:  10 * time.Minute,
		},
		NATS: NATSConfig{
			Enabled:                   false,
			URL:                       "nats://127.0.0.1:4222",
			StoreDir:                  "/data/nats/jetstream",
			MaxMemory:                 256 << 20,
			MaxStore:                  1 << 30,
			TopicPrefix:               "payments",
			CircuitBreakerMaxFailures: 5,
			CircuitBreakerTimeout:     30 * time.Second,
		},
		Provisioning: ProvisioningConfig{
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
			BreakerInterval:    time.Minute,
		},
		Security: SecurityConfig{
			TokenTimeout:    24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"http://localhost:3000"},
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration in three layers of increasing priority:
// struct defaults, an optional YAML file, and environment variables.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// GATEWAY_HASH_SECRET -> gateway.hash_secret
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are accepted as comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variables to koanf paths. Variables that are
// not listed are ignored so unrelated process environment never leaks in.
var envMappings = map[string]string{
	"http_host":       "server.host",
	"http_port":       "server.port",
	"http_timeout":    "server.timeout",
	"environment":     "server.environment",
	"webhook_timeout": "server.webhook_timeout",
	"max_body_bytes":  "server.max_body_bytes",

	"gateway_mode":             "gateway.mode",
	"gateway_merchant_code":    "gateway.merchant_code",
	"gateway_hash_secret":      "gateway.hash_secret",
	"gateway_base_url":         "gateway.base_url",
	"gateway_version":          "gateway.version",
	"gateway_currency_code":    "gateway.currency_code",
	"gateway_locale":           "gateway.locale",
	"gateway_time_zone":        "gateway.time_zone",
	"gateway_return_url":       "gateway.return_url",
	"gateway_callback_url":     "gateway.callback_url",
	"gateway_expire_minutes":   "gateway.expire_minutes",
	"gateway_amount_tolerance": "gateway.amount_tolerance",
	"gateway_mock_page_url":    "gateway.mock_page_url",
	"frontend_result_url":      "gateway.frontend_result_url",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"journal_path":         "journal.path",
	"journal_in_memory":    "journal.in_memory",
	"journal_delivery_ttl": "journal.delivery_ttl",
	"journal_gc_interval":  "journal.gc_interval",

	"nats_enabled":                      "nats.enabled",
	"nats_url":                          "nats.url",
	"nats_embedded":                     "nats.embedded_server",
	"nats_store_dir":                    "nats.store_dir",
	"nats_max_memory":                   "nats.max_memory",
	"nats_max_store":                    "nats.max_store",
	"nats_topic_prefix":                 "nats.topic_prefix",
	"nats_circuit_breaker_max_failures": "nats.circuit_breaker_max_failures",
	"nats_circuit_breaker_timeout":      "nats.circuit_breaker_timeout",

	"provisioning_breaker_max_failures": "provisioning.breaker_max_failures",
	"provisioning_breaker_timeout":      "provisioning.breaker_timeout",

	"jwt_secret":          "security.jwt_secret",
	"token_timeout":       "security.token_timeout",
	"rate_limit_reqs":     "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",
	"casbin_model_path":   "security.casbin_model_path",
	"casbin_policy_path":  "security.casbin_policy_path",
	"supervisor_backoff":  "supervisor.failure_backoff",
	"supervisor_shutdown": "supervisor.shutdown_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
