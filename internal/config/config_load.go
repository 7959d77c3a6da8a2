package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Provider: "openai",
		Runtime: RuntimeConfig{
			ModelTimeoutMs:    45000,
			ModelRetryCount:   1,
			MaxSteps:          8,
			ContextWindowSize: 20,
			Checks: ChecksConfig{
				ESLint: ESLintCheckConfig{Enabled: true},
			},
		},
		Observability: ObservabilityConfig{
			Protocol: "grpc",
			Insecure: true,
		},
	}
}

// ResolveHome returns the myclaw home directory: MYCLAW_HOME if set,
// otherwise ~/.myclaw.
func ResolveHome() string {
	if v := os.Getenv("MYCLAW_HOME"); v != "" {
		return ExpandHome(v)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".myclaw"
	}
	return filepath.Join(home, ".myclaw")
}

// DefaultConfigPath resolves the config file location: MYCLAW_CONFIG if set,
// otherwise <home>/config.json.
func DefaultConfigPath() string {
	if v := os.Getenv("MYCLAW_CONFIG"); v != "" {
		return ExpandHome(v)
	}
	return filepath.Join(ResolveHome(), "config.json")
}

// LoadEnvFiles loads <home>/.env and then the local ./.env. Neither overrides
// variables already exported, so the home file wins on conflicting keys.
// Missing files are not an error.
func LoadEnvFiles(homeDir string) {
	_ = godotenv.Load(filepath.Join(homeDir, ".env"))
	_ = godotenv.Load(".env")
}

// Load reads config from a json5 file, then overlays env vars.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.HomeDir = ResolveHome()
	LoadEnvFiles(cfg.HomeDir)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values; empty values are ignored.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	envStr("MYCLAW_PROVIDER", &c.Provider)

	// Provider-specific env vars apply first so the generic MYCLAW_* ones win.
	switch c.Provider {
	case "openai":
		envStr("OPENAI_MODEL", &c.Model)
		envStr("OPENAI_BASE_URL", &c.BaseURL)
	case "anthropic":
		envStr("ANTHROPIC_MODEL", &c.Model)
	}
	envStr("MYCLAW_MODEL", &c.Model)
	envStr("MYCLAW_BASE_URL", &c.BaseURL)

	envStr("MYCLAW_WORKSPACE", &c.Workspace)
	envStr("MYCLAW_MEMORY_FILE", &c.MemoryFile)

	envStr("OPENAI_API_KEY", &c.OpenAIKey)
	envStr("ANTHROPIC_API_KEY", &c.AnthropicKey)

	envInt("MYCLAW_MODEL_TIMEOUT_MS", &c.Runtime.ModelTimeoutMs)
	envInt("MYCLAW_MODEL_RETRY_COUNT", &c.Runtime.ModelRetryCount)
	envInt("MYCLAW_MAX_STEPS", &c.Runtime.MaxSteps)
	envInt("MYCLAW_CONTEXT_WINDOW", &c.Runtime.ContextWindowSize)
	envInt("MYCLAW_RPM", &c.Runtime.RequestsPerMinute)
	envBool("MYCLAW_ESLINT", &c.Runtime.Checks.ESLint.Enabled)

	envStr("MYCLAW_OTLP_ENDPOINT", &c.Observability.OTLPEndpoint)
	envStr("MYCLAW_OTLP_PROTOCOL", &c.Observability.Protocol)
	envBool("MYCLAW_OTLP_INSECURE", &c.Observability.Insecure)
}

// applyDefaults restores defaults for fields an explicit empty string or zero
// in the config file would otherwise blank out.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.Runtime.ModelTimeoutMs <= 0 {
		c.Runtime.ModelTimeoutMs = d.Runtime.ModelTimeoutMs
	}
	if c.Runtime.ModelRetryCount < 0 {
		c.Runtime.ModelRetryCount = d.Runtime.ModelRetryCount
	}
	if c.Runtime.MaxSteps <= 0 {
		c.Runtime.MaxSteps = d.Runtime.MaxSteps
	}
	if c.Runtime.ContextWindowSize <= 0 {
		c.Runtime.ContextWindowSize = d.Runtime.ContextWindowSize
	}
	if c.Observability.Protocol == "" {
		c.Observability.Protocol = d.Observability.Protocol
	}
	if c.HomeDir == "" {
		c.HomeDir = ResolveHome()
	}
}

// Save writes the config to a JSON file, creating parent directories.
// Secret fields carry `json:"-"` tags and are never persisted.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
