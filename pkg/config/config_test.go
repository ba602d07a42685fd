package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.BaseURL != "https://aip.baidubce.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.TokenSafetyMargin != 60*time.Second {
		t.Errorf("TokenSafetyMargin = %v", cfg.TokenSafetyMargin)
	}
	if cfg.OverlayTTL != 10*time.Minute {
		t.Errorf("OverlayTTL = %v", cfg.OverlayTTL)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qianfan.yaml")
	yaml := `
access_key: ak-test
secret_key: sk-test
base_url: http://localhost:9090
timeout: 5s
endpoints:
  chat:
    my-model: /chat/my-model
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://localhost:9090" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if got := cfg.Endpoints["chat"]["my-model"]; got != "/chat/my-model" {
		t.Errorf("endpoint entry = %q", got)
	}
	// Unset fields keep defaults.
	if cfg.OverlayTTL != 10*time.Minute {
		t.Errorf("OverlayTTL = %v, want default", cfg.OverlayTTL)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qianfan.yaml")
	yaml := "access_key: from-file\nsecret_key: sk\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("QIANFAN_ACCESS_KEY", "from-env")
	t.Setenv("QIANFAN_TIMEOUT", "30")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccessKey != "from-env" {
		t.Errorf("AccessKey = %q, want env value", cfg.AccessKey)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s from bare-seconds env", cfg.Timeout)
	}
}

func TestSecretKeyFileResolution(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "secret")
	if err := os.WriteFile(secretPath, []byte("sk-from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "qianfan.yaml")
	yaml := "access_key: ak\nsecret_key_file: " + secretPath + "\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SecretKey != "sk-from-file" {
		t.Errorf("SecretKey = %q, want trimmed file contents", cfg.SecretKey)
	}
}

func TestValidateMissingKeys(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for empty key pair")
	}
	msg := err.Error()
	if !strings.Contains(msg, "access_key") || !strings.Contains(msg, "secret_key") {
		t.Errorf("error should name missing fields, got %q", msg)
	}
}

func TestValidateRejectsBadDurations(t *testing.T) {
	cfg := Defaults()
	cfg.AccessKey = "ak"
	cfg.SecretKey = "sk"
	cfg.Timeout = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero timeout")
	}
}
