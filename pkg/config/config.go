// Package config provides unified configuration for the SDK.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. Optional .env file (godotenv, best-effort)
//  3. YAML config file (discovered or explicitly specified)
//  4. Environment variable overrides (QIANFAN_ prefix)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Config holds all configuration for a client instance.
type Config struct {
	// AccessKey and SecretKey form the key pair used against the token
	// endpoint. SecretKeyFile is the _file variant for SecretKey.
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	SecretKeyFile string `yaml:"secret_key_file"`

	// BaseURL is the inference service root. AuthBaseURL is the token
	// issuance root; it defaults to BaseURL when empty.
	BaseURL     string `yaml:"base_url"`     // default: https://aip.baidubce.com
	AuthBaseURL string `yaml:"auth_base_url"`

	// Timeout bounds buffered calls. Streaming calls are not bounded by
	// it; their lifetime is governed by context cancellation.
	Timeout time.Duration `yaml:"timeout"` // default: 60s

	// TokenSafetyMargin is subtracted from a credential's lifetime when
	// judging validity, so a token is refreshed before it actually expires.
	TokenSafetyMargin time.Duration `yaml:"token_safety_margin"` // default: 60s

	// Endpoints adds or overrides static endpoint table entries, keyed by
	// model type then lowercase model name.
	Endpoints map[string]map[string]string `yaml:"endpoints"`

	// DisableEndpointOverlay turns off the lazily fetched dynamic endpoint
	// overlay, leaving only the static table and per-call overrides.
	DisableEndpointOverlay bool `yaml:"disable_endpoint_overlay"`

	// OverlayTTL is the freshness window of the dynamic endpoint overlay.
	OverlayTTL time.Duration `yaml:"overlay_ttl"` // default: 10m
}

// Defaults returns the built-in default configuration.
func Defaults() Config {
	return Config{
		BaseURL:           "https://aip.baidubce.com",
		Timeout:           60 * time.Second,
		TokenSafetyMargin: 60 * time.Second,
		OverlayTTL:        10 * time.Minute,
	}
}
