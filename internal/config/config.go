// Package config handles loading and validation of register configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"poscart/internal/api"
	"poscart/internal/coordinator"
)

// Engine defaults, overridable per deployment.
const (
	defaultDebounceMillis      = 100
	defaultProbeIntervalMillis = 5000
)

// Config holds all register configuration.
// Environment determines whether billing credentials load from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string

	// RegisterID identifies this till to the billing backend and names the
	// secret its credentials live under.
	RegisterID string

	// Billing credentials (loaded from secrets in production)
	Billing BillingConfig

	// Engine tunables
	Engine EngineConfig
}

// BillingConfig contains the billing backend connection settings.
// In production, this is loaded from Secret Manager as JSON.
// In development, loaded from individual env vars or CONFIG_FILE.
type BillingConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`

	// PlainTransport disables the Chrome TLS masquerade for self-hosted
	// billing backends.
	PlainTransport bool `json:"plain_transport,omitempty"`

	// TimeoutMillis bounds each HTTP exchange. Zero uses the client default.
	TimeoutMillis int `json:"timeout_ms,omitempty"`
}

// EngineConfig tunes the mutation engine. Zero values fall back to the
// package defaults of each component.
type EngineConfig struct {
	MaxAttempts          int `json:"max_attempts,omitempty"`
	BackoffMillis        int `json:"backoff_ms,omitempty"`
	AttemptTimeoutMillis int `json:"attempt_timeout_ms,omitempty"`
	DebounceMillis       int `json:"debounce_ms,omitempty"`
	ProbeIntervalMillis  int `json:"probe_interval_ms,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		RegisterID:  os.Getenv("REGISTER_ID"),
	}

	// RegisterID required in all environments
	if cfg.RegisterID == "" {
		return nil, fmt.Errorf("REGISTER_ID environment variable required")
	}

	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading billing config: %w", err)
	}

	if err := cfg.loadEngineFromEnv(); err != nil {
		return nil, fmt.Errorf("loading engine config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port        string        `json:"port"`
		Environment string        `json:"environment"`
		LogLevel    string        `json:"log_level"`
		RegisterID  string        `json:"register_id"`
		Billing     BillingConfig `json:"billing"`
		Engine      EngineConfig  `json:"engine"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, "8080"),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		RegisterID:  fileConfig.RegisterID,
		Billing:     fileConfig.Billing,
		Engine:      fileConfig.Engine,
	}

	if cfg.RegisterID == "" {
		return nil, fmt.Errorf("register_id is required")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches billing credentials from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{register_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.RegisterID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Billing); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	return nil
}

// loadFromEnv reads billing settings from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Billing = BillingConfig{
		BaseURL: os.Getenv("BILLING_URL"),
		APIKey:  os.Getenv("BILLING_API_KEY"),
	}
	if os.Getenv("BILLING_PLAIN_TRANSPORT") == "true" {
		c.Billing.PlainTransport = true
	}

	var err error
	c.Billing.TimeoutMillis, err = envInt("BILLING_TIMEOUT_MS")
	return err
}

// loadEngineFromEnv reads engine tunables. File-based config carries these in
// its "engine" block instead.
func (c *Config) loadEngineFromEnv() error {
	fields := []struct {
		key string
		dst *int
	}{
		{"RETRY_MAX_ATTEMPTS", &c.Engine.MaxAttempts},
		{"RETRY_BACKOFF_MS", &c.Engine.BackoffMillis},
		{"ATTEMPT_TIMEOUT_MS", &c.Engine.AttemptTimeoutMillis},
		{"TOTALS_DEBOUNCE_MS", &c.Engine.DebounceMillis},
		{"PROBE_INTERVAL_MS", &c.Engine.ProbeIntervalMillis},
	}
	for _, f := range fields {
		v, err := envInt(f.key)
		if err != nil {
			return err
		}
		if v != 0 {
			*f.dst = v
		}
	}
	return nil
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Billing.BaseURL == "" {
		return fmt.Errorf("billing base_url is required")
	}
	if c.Billing.APIKey == "" {
		return fmt.Errorf("billing api_key is required")
	}

	u, err := url.Parse(c.Billing.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid billing base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid billing base_url: scheme must be http or https")
	}

	if c.Engine.MaxAttempts < 0 || c.Engine.BackoffMillis < 0 {
		return fmt.Errorf("engine retry settings must not be negative")
	}

	return nil
}

// APIConfig builds the billing client configuration.
func (c *Config) APIConfig() api.Config {
	return api.Config{
		BaseURL:        c.Billing.BaseURL,
		APIKey:         c.Billing.APIKey,
		RegisterID:     c.RegisterID,
		Timeout:        time.Duration(c.Billing.TimeoutMillis) * time.Millisecond,
		PlainTransport: c.Billing.PlainTransport,
	}
}

// CoordinatorOptions builds the retry policy for cart editors.
func (c *Config) CoordinatorOptions() coordinator.Options {
	return coordinator.Options{
		MaxAttempts:    c.Engine.MaxAttempts,
		BackoffBase:    time.Duration(c.Engine.BackoffMillis) * time.Millisecond,
		AttemptTimeout: time.Duration(c.Engine.AttemptTimeoutMillis) * time.Millisecond,
	}
}

// DebounceWindow returns the totals debounce window.
func (c *Config) DebounceWindow() time.Duration {
	millis := c.Engine.DebounceMillis
	if millis <= 0 {
		millis = defaultDebounceMillis
	}
	return time.Duration(millis) * time.Millisecond
}

// ProbeInterval returns the connectivity probe cadence.
func (c *Config) ProbeInterval() time.Duration {
	millis := c.Engine.ProbeIntervalMillis
	if millis <= 0 {
		millis = defaultProbeIntervalMillis
	}
	return time.Duration(millis) * time.Millisecond
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// envInt parses an integer environment variable. Unset means zero.
func envInt(key string) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}
