// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Gateway modes.
const (
	GatewayModeHMAC = "hmac"
	GatewayModeMock = "mock"
)

const minJWTSecretLength = 32

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateGateway(); err != nil {
		return err
	}
	if err := c.validateJournal(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.WebhookTimeout <= 0 {
		return fmt.Errorf("WEBHOOK_TIMEOUT must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	return nil
}

func (c *Config) validateGateway() error {
	g := &c.Gateway
	switch g.Mode {
	case GatewayModeHMAC:
		if g.MerchantCode == "" {
			return fmt.Errorf("GATEWAY_MERCHANT_CODE is required when GATEWAY_MODE=hmac")
		}
		if g.HashSecret == "" {
			return fmt.Errorf("GATEWAY_HASH_SECRET is required when GATEWAY_MODE=hmac")
		}
		if err := validateHTTPURL(g.BaseURL, "GATEWAY_BASE_URL"); err != nil {
			return err
		}
	case GatewayModeMock:
		if c.IsProduction() {
			return fmt.Errorf("GATEWAY_MODE=mock is not allowed when ENVIRONMENT=production")
		}
		if err := validateHTTPURL(g.MockPageURL, "GATEWAY_MOCK_PAGE_URL"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("GATEWAY_MODE must be %q or %q, got %q", GatewayModeHMAC, GatewayModeMock, g.Mode)
	}

	if err := validateHTTPURL(g.ReturnURL, "GATEWAY_RETURN_URL"); err != nil {
		return err
	}
	if err := validateHTTPURL(g.CallbackURL, "GATEWAY_CALLBACK_URL"); err != nil {
		return err
	}
	if err := validateHTTPURL(g.FrontendResultURL, "FRONTEND_RESULT_URL"); err != nil {
		return err
	}
	if g.ExpireMinutes <= 0 {
		return fmt.Errorf("GATEWAY_EXPIRE_MINUTES must be positive")
	}
	if g.AmountTolerance < 0 {
		return fmt.Errorf("GATEWAY_AMOUNT_TOLERANCE must not be negative")
	}
	if _, err := time.LoadLocation(g.TimeZone); err != nil {
		return fmt.Errorf("GATEWAY_TIME_ZONE is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateJournal() error {
	if !c.Journal.InMemory && c.Journal.Path == "" {
		return fmt.Errorf("JOURNAL_PATH is required unless JOURNAL_IN_MEMORY=true")
	}
	if c.Journal.DeliveryTTL <= 0 {
		return fmt.Errorf("JOURNAL_DELIVERY_TTL must be positive")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.URL == "" && !c.NATS.EmbeddedServer {
		return fmt.Errorf("NATS_URL is required when NATS_ENABLED=true without an embedded server")
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if len(c.Catalog.Products) == 0 {
		return fmt.Errorf("catalog.products must list at least one product")
	}
	seen := make(map[string]struct{}, len(c.Catalog.Products))
	for i, p := range c.Catalog.Products {
		if p.ID == "" {
			return fmt.Errorf("catalog.products[%d]: id is required", i)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("catalog.products[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.Price <= 0 {
			return fmt.Errorf("catalog.products[%d]: price for %q must be positive", i, p.ID)
		}
		if p.Currency != "" && len(p.Currency) != 3 {
			return fmt.Errorf("catalog.products[%d]: currency %q must be a 3-letter code", i, p.Currency)
		}
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if !c.Security.RateLimitDisabled && c.Security.RateLimitReqs <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQS must be positive unless DISABLE_RATE_LIMIT=true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL is invalid: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

func validateHTTPURL(raw, name string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", name)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
