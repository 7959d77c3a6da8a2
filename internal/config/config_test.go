package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultValues verifies the documented defaults.
func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.Provider != "openai" {
		t.Errorf("Provider = %q, want %q", cfg.Provider, "openai")
	}
	if cfg.Runtime.ModelTimeoutMs != 45000 {
		t.Errorf("ModelTimeoutMs = %d, want 45000", cfg.Runtime.ModelTimeoutMs)
	}
	if cfg.Runtime.ModelRetryCount != 1 {
		t.Errorf("ModelRetryCount = %d, want 1", cfg.Runtime.ModelRetryCount)
	}
	if cfg.Runtime.MaxSteps != 8 {
		t.Errorf("MaxSteps = %d, want 8", cfg.Runtime.MaxSteps)
	}
	if cfg.Runtime.ContextWindowSize != 20 {
		t.Errorf("ContextWindowSize = %d, want 20", cfg.Runtime.ContextWindowSize)
	}
	if !cfg.Runtime.Checks.ESLint.Enabled {
		t.Error("ESLint check should be enabled by default")
	}
}

// TestLoadMissingFile returns defaults when the config file does not exist.
func TestLoadMissingFile(t *testing.T) {
	t.Setenv("MYCLAW_HOME", t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("Provider = %q, want default %q", cfg.Provider, "openai")
	}
}

// TestLoadFileAndEnvPrecedence checks env > file > defaults, and that
// empty-string file values fall back to defaults.
func TestLoadFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MYCLAW_HOME", dir)

	path := filepath.Join(dir, "config.json")
	body := `{
		// comments are allowed
		provider: "",
		model: "file-model",
		runtime: { max_steps: 12 },
	}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		env          map[string]string
		wantProvider string
		wantModel    string
		wantSteps    int
	}{
		{
			name:         "file only",
			env:          nil,
			wantProvider: "openai", // empty string in file treated as unset
			wantModel:    "file-model",
			wantSteps:    12,
		},
		{
			name:         "env beats file",
			env:          map[string]string{"MYCLAW_PROVIDER": "anthropic", "MYCLAW_MODEL": "env-model", "MYCLAW_MAX_STEPS": "3"},
			wantProvider: "anthropic",
			wantModel:    "env-model",
			wantSteps:    3,
		},
		{
			name:         "provider-specific model env",
			env:          map[string]string{"MYCLAW_PROVIDER": "openai", "OPENAI_MODEL": "gpt-test"},
			wantProvider: "openai",
			wantModel:    "gpt-test",
			wantSteps:    12,
		},
		{
			name:         "generic model env beats provider-specific",
			env:          map[string]string{"MYCLAW_PROVIDER": "openai", "OPENAI_MODEL": "gpt-test", "MYCLAW_MODEL": "top"},
			wantProvider: "openai",
			wantModel:    "top",
			wantSteps:    12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Provider != tt.wantProvider {
				t.Errorf("Provider = %q, want %q", cfg.Provider, tt.wantProvider)
			}
			if cfg.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", cfg.Model, tt.wantModel)
			}
			if cfg.Runtime.MaxSteps != tt.wantSteps {
				t.Errorf("MaxSteps = %d, want %d", cfg.Runtime.MaxSteps, tt.wantSteps)
			}
		})
	}
}

// TestOpenAIBaseURLEnv applies OPENAI_BASE_URL only for the openai provider.
func TestOpenAIBaseURLEnv(t *testing.T) {
	t.Setenv("MYCLAW_HOME", t.TempDir())
	t.Setenv("OPENAI_BASE_URL", "https://x/v1/")

	t.Setenv("MYCLAW_PROVIDER", "openai")
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseURL != "https://x/v1/" {
		t.Errorf("BaseURL = %q, want env value", cfg.BaseURL)
	}

	t.Setenv("MYCLAW_PROVIDER", "anthropic")
	cfg, err = Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseURL != "" {
		t.Errorf("BaseURL = %q, want empty for anthropic provider", cfg.BaseURL)
	}
}

// TestDotenvLoading reads API keys from <home>/.env.
func TestDotenvLoading(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MYCLAW_HOME", dir)
	os.Unsetenv("OPENAI_API_KEY")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=sk-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("OPENAI_API_KEY") })

	cfg, err := Load(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OpenAIKey != "sk-dotenv" {
		t.Errorf("OpenAIKey = %q, want value from dotenv", cfg.OpenAIKey)
	}
}

// TestValidate rejects broken configurations.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"unknown provider", func(c *Config) { c.Provider = "llamacpp" }, true},
		{"zero timeout", func(c *Config) { c.Runtime.ModelTimeoutMs = 0 }, true},
		{"zero max steps", func(c *Config) { c.Runtime.MaxSteps = 0 }, true},
		{"zero window", func(c *Config) { c.Runtime.ContextWindowSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestExpandHome expands a leading tilde.
func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	tests := []struct {
		in   string
		want string
	}{
		{"~/ws", home + "/ws"},
		{"~", home},
		{"/abs/path", "/abs/path"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExpandHome(tt.in); got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
