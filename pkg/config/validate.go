package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.AccessKey == "" {
		errs = append(errs, fmt.Errorf("access_key is required"))
	}
	if c.SecretKey == "" && c.SecretKeyFile == "" {
		errs = append(errs, fmt.Errorf("secret_key or secret_key_file is required"))
	}
	if c.BaseURL == "" {
		errs = append(errs, fmt.Errorf("base_url is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be > 0, got %v", c.Timeout))
	}
	if c.TokenSafetyMargin < 0 {
		errs = append(errs, fmt.Errorf("token_safety_margin must be >= 0, got %v", c.TokenSafetyMargin))
	}
	if c.OverlayTTL <= 0 {
		errs = append(errs, fmt.Errorf("overlay_ttl must be > 0, got %v", c.OverlayTTL))
	}

	return errors.Join(errs...)
}
