package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads so tests don't inherit state.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"CONFIG_FILE", "PORT", "ENVIRONMENT", "LOG_LEVEL", "GCP_PROJECT",
		"REGISTER_ID", "BILLING_URL", "BILLING_API_KEY",
		"BILLING_PLAIN_TRANSPORT", "BILLING_TIMEOUT_MS",
		"RETRY_MAX_ATTEMPTS", "RETRY_BACKOFF_MS", "ATTEMPT_TIMEOUT_MS",
		"TOTALS_DEBOUNCE_MS", "PROBE_INTERVAL_MS",
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("REGISTER_ID", "till-7")
	t.Setenv("BILLING_URL", "https://billing.example.com")
	t.Setenv("BILLING_API_KEY", "sk-test")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("RETRY_BACKOFF_MS", "200")
	t.Setenv("TOTALS_DEBOUNCE_MS", "150")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want default 8080", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.RegisterID != "till-7" {
		t.Errorf("RegisterID = %q, want till-7", cfg.RegisterID)
	}
	if cfg.Billing.BaseURL != "https://billing.example.com" {
		t.Errorf("Billing.BaseURL = %q", cfg.Billing.BaseURL)
	}

	opts := cfg.CoordinatorOptions()
	if opts.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", opts.MaxAttempts)
	}
	if opts.BackoffBase != 200*time.Millisecond {
		t.Errorf("BackoffBase = %v, want 200ms", opts.BackoffBase)
	}
	if cfg.DebounceWindow() != 150*time.Millisecond {
		t.Errorf("DebounceWindow() = %v, want 150ms", cfg.DebounceWindow())
	}
}

func TestLoadMissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing register ID",
			env:     map[string]string{"BILLING_URL": "https://b.example.com", "BILLING_API_KEY": "k"},
			wantErr: "REGISTER_ID",
		},
		{
			name:    "missing billing URL",
			env:     map[string]string{"REGISTER_ID": "till-1", "BILLING_API_KEY": "k"},
			wantErr: "base_url",
		},
		{
			name:    "missing API key",
			env:     map[string]string{"REGISTER_ID": "till-1", "BILLING_URL": "https://b.example.com"},
			wantErr: "api_key",
		},
		{
			name: "bad URL scheme",
			env: map[string]string{
				"REGISTER_ID": "till-1", "BILLING_URL": "ftp://b.example.com", "BILLING_API_KEY": "k",
			},
			wantErr: "scheme",
		},
		{
			name: "production without project",
			env: map[string]string{
				"REGISTER_ID": "till-1", "ENVIRONMENT": "production",
			},
			wantErr: "GCP_PROJECT",
		},
		{
			name: "bad integer tunable",
			env: map[string]string{
				"REGISTER_ID": "till-1", "BILLING_URL": "https://b.example.com",
				"BILLING_API_KEY": "k", "RETRY_MAX_ATTEMPTS": "lots",
			},
			wantErr: "RETRY_MAX_ATTEMPTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(context.Background())
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"port": "9090",
		"log_level": "debug",
		"register_id": "till-3",
		"billing": {
			"base_url": "https://billing.example.com",
			"api_key": "sk-file",
			"plain_transport": true,
			"timeout_ms": 5000
		},
		"engine": {
			"max_attempts": 4,
			"backoff_ms": 250,
			"attempt_timeout_ms": 8000,
			"debounce_ms": 100,
			"probe_interval_ms": 2000
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if !cfg.Billing.PlainTransport {
		t.Error("PlainTransport not loaded from file")
	}

	apiCfg := cfg.APIConfig()
	if apiCfg.RegisterID != "till-3" {
		t.Errorf("APIConfig().RegisterID = %q, want till-3", apiCfg.RegisterID)
	}
	if apiCfg.Timeout != 5*time.Second {
		t.Errorf("APIConfig().Timeout = %v, want 5s", apiCfg.Timeout)
	}

	opts := cfg.CoordinatorOptions()
	if opts.MaxAttempts != 4 || opts.BackoffBase != 250*time.Millisecond || opts.AttemptTimeout != 8*time.Second {
		t.Errorf("CoordinatorOptions() = %+v", opts)
	}
	if cfg.ProbeInterval() != 2*time.Second {
		t.Errorf("ProbeInterval() = %v, want 2s", cfg.ProbeInterval())
	}
}

func TestLoadFromFileMissingRegister(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"billing": {"base_url": "https://b.example.com", "api_key": "k"}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	_, err := Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "register_id") {
		t.Errorf("Load() error = %v, want register_id requirement", err)
	}
}

func TestEngineDefaults(t *testing.T) {
	cfg := &Config{}
	if cfg.DebounceWindow() != 100*time.Millisecond {
		t.Errorf("DebounceWindow() = %v, want 100ms", cfg.DebounceWindow())
	}
	if cfg.ProbeInterval() != 5*time.Second {
		t.Errorf("ProbeInterval() = %v, want 5s", cfg.ProbeInterval())
	}
}
