package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. .env file in the working directory (best-effort)
//  3. YAML config file (explicit path, QIANFAN_CONFIG env, ./qianfan.yaml,
//     /etc/qianfan/config.yaml)
//  4. Environment variable overrides
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	// Populate the environment from .env if one exists. Missing files are
	// not an error.
	_ = godotenv.Load()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. QIANFAN_CONFIG environment variable
// 3. ./qianfan.yaml in the current directory
// 4. /etc/qianfan/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("QIANFAN_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"qianfan.yaml",
		"/etc/qianfan/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps QIANFAN_* environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QIANFAN_ACCESS_KEY"); v != "" {
		cfg.AccessKey = v
	}
	if v := os.Getenv("QIANFAN_SECRET_KEY"); v != "" {
		cfg.SecretKey = v
	}
	if v := os.Getenv("QIANFAN_SECRET_KEY_FILE"); v != "" {
		cfg.SecretKeyFile = v
	}
	if v := os.Getenv("QIANFAN_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("QIANFAN_AUTH_BASE_URL"); v != "" {
		cfg.AuthBaseURL = v
	}
	if v := os.Getenv("QIANFAN_TIMEOUT"); v != "" {
		if d, err := parseDurationOrSeconds(v); err == nil {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("QIANFAN_DISABLE_ENDPOINT_OVERLAY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DisableEndpointOverlay = b
		}
	}
}

// parseDurationOrSeconds accepts either a Go duration string ("30s") or a
// bare integer number of seconds ("30").
func parseDurationOrSeconds(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// resolveFileReferences loads _file variant fields into their targets.
// The direct field wins when both are set.
func resolveFileReferences(cfg *Config) error {
	if cfg.SecretKey == "" && cfg.SecretKeyFile != "" {
		data, err := os.ReadFile(cfg.SecretKeyFile)
		if err != nil {
			return fmt.Errorf("reading secret_key_file: %w", err)
		}
		cfg.SecretKey = strings.TrimSpace(string(data))
	}
	return nil
}
