package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config is the effective runtime configuration for myclaw.
// It is assembled once per process by Load (defaults → config file → env)
// and treated as immutable afterwards.
type Config struct {
	Provider   string `json:"provider"`              // "mock", "openai" or "anthropic"
	Model      string `json:"model,omitempty"`       // empty = provider default
	BaseURL    string `json:"base_url,omitempty"`    // OpenAI-compatible endpoint override
	Workspace  string `json:"workspace,omitempty"`   // default: current directory at run time
	HomeDir    string `json:"-"`                     // resolved from MYCLAW_HOME / ~/.myclaw, never persisted
	MemoryFile string `json:"memory_file,omitempty"` // default: <home>/memory.md

	Runtime       RuntimeConfig       `json:"runtime"`
	Review        ReviewConfig        `json:"review,omitempty"`
	Observability ObservabilityConfig `json:"observability,omitempty"`

	// Provider secrets come from env (or dotenv) only, never from config.json.
	OpenAIKey    string `json:"-"`
	AnthropicKey string `json:"-"`
}

// RuntimeConfig bounds the agent turn loop and the model client.
type RuntimeConfig struct {
	ModelTimeoutMs    int          `json:"model_timeout_ms"`    // per-attempt bound, default 45000
	ModelRetryCount   int          `json:"model_retry_count"`   // retries on timeout/transport error, default 1
	MaxSteps          int          `json:"max_steps"`           // model↔tool iterations per turn, default 8
	ContextWindowSize int          `json:"context_window_size"` // sliding-window tail size, default 20
	RequestsPerMinute int          `json:"requests_per_minute,omitempty"` // 0 = unlimited
	Checks            ChecksConfig `json:"checks"`
}

// ChecksConfig toggles the built-in async soft-gate checks.
type ChecksConfig struct {
	ESLint ESLintCheckConfig `json:"eslint"`
}

// ESLintCheckConfig controls the post-write ESLint pass.
type ESLintCheckConfig struct {
	Enabled bool `json:"enabled"`
}

// ReviewConfig maps file extensions to additional reviewer commands that run
// as async checks after a successful mutation (e.g. ".go": "gofmt -l").
type ReviewConfig struct {
	Enabled bool              `json:"enabled"`
	Tools   map[string]string `json:"tools,omitempty"`
}

// ObservabilityConfig configures the optional OTLP trace exporter.
// Tracing is disabled while Endpoint is empty.
type ObservabilityConfig struct {
	OTLPEndpoint string `json:"otlp_endpoint,omitempty"`
	Protocol     string `json:"protocol,omitempty"` // "grpc" (default) or "http"
	Insecure     bool   `json:"insecure,omitempty"`
}

// Validate rejects configurations the runtime cannot start with.
func (c *Config) Validate() error {
	switch c.Provider {
	case "mock", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown provider %q (want mock, openai or anthropic)", c.Provider)
	}
	if c.Runtime.ModelTimeoutMs <= 0 {
		return fmt.Errorf("runtime.model_timeout_ms must be > 0, got %d", c.Runtime.ModelTimeoutMs)
	}
	if c.Runtime.ModelRetryCount < 0 {
		return fmt.Errorf("runtime.model_retry_count must be >= 0, got %d", c.Runtime.ModelRetryCount)
	}
	if c.Runtime.MaxSteps <= 0 {
		return fmt.Errorf("runtime.max_steps must be > 0, got %d", c.Runtime.MaxSteps)
	}
	if c.Runtime.ContextWindowSize <= 0 {
		return fmt.Errorf("runtime.context_window_size must be > 0, got %d", c.Runtime.ContextWindowSize)
	}
	return nil
}

// SessionsDir is where per-session JSONL logs live.
func (c *Config) SessionsDir() string { return filepath.Join(c.HomeDir, "sessions") }

// MetricsDir is where per-session metrics JSONL files live.
func (c *Config) MetricsDir() string { return filepath.Join(c.HomeDir, "metrics") }

// ProfilePath is the durable user-profile document.
func (c *Config) ProfilePath() string { return filepath.Join(c.HomeDir, "user-profile.json") }

// UsagePath is the SQLite usage ledger.
func (c *Config) UsagePath() string { return filepath.Join(c.HomeDir, "usage.db") }

// MemoryPath resolves the memory file: explicit memory_file wins, otherwise
// <home>/memory.md.
func (c *Config) MemoryPath() string {
	if c.MemoryFile != "" {
		return ExpandHome(c.MemoryFile)
	}
	return filepath.Join(c.HomeDir, "memory.md")
}

// WorkspacePath returns the expanded, absolute workspace path. An unset
// workspace falls back to the current directory.
func (c *Config) WorkspacePath() string {
	ws := ExpandHome(c.Workspace)
	if ws == "" {
		ws, _ = os.Getwd()
	}
	if !filepath.IsAbs(ws) {
		abs, err := filepath.Abs(ws)
		if err == nil {
			ws = abs
		}
	}
	return ws
}
