package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/myclaw/myclaw/internal/config"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long:  "Show the effective configuration after defaults, config file and environment overrides. Secrets are masked.",
		Run: func(cmd *cobra.Command, args []string) {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("Config file: %s", cfgPath)
			if _, err := os.Stat(cfgPath); err != nil {
				fmt.Println(" (not found, using defaults)")
			} else {
				fmt.Println()
			}
			fmt.Println()
			printConfig(cfg)
		},
	}
}

// printConfig renders the effective config with secrets masked. Shared with
// the chat REPL's /config command.
func printConfig(cfg *config.Config) {
	model := cfg.Model
	if model == "" {
		model = "(provider default)"
	}
	fmt.Printf("  %-18s %s\n", "Provider:", cfg.Provider)
	fmt.Printf("  %-18s %s\n", "Model:", model)
	if cfg.BaseURL != "" {
		fmt.Printf("  %-18s %s\n", "Base URL:", cfg.BaseURL)
	}
	fmt.Printf("  %-18s %s\n", "Workspace:", cfg.WorkspacePath())
	fmt.Printf("  %-18s %s\n", "Home:", cfg.HomeDir)
	fmt.Printf("  %-18s %s\n", "Memory file:", cfg.MemoryPath())

	fmt.Println()
	fmt.Printf("  %-18s %d ms\n", "Model timeout:", cfg.Runtime.ModelTimeoutMs)
	fmt.Printf("  %-18s %d\n", "Model retries:", cfg.Runtime.ModelRetryCount)
	fmt.Printf("  %-18s %d\n", "Max steps:", cfg.Runtime.MaxSteps)
	fmt.Printf("  %-18s %d\n", "Context window:", cfg.Runtime.ContextWindowSize)
	if cfg.Runtime.RequestsPerMinute > 0 {
		fmt.Printf("  %-18s %d requests/min\n", "Rate limit:", cfg.Runtime.RequestsPerMinute)
	}
	fmt.Printf("  %-18s %v\n", "ESLint check:", cfg.Runtime.Checks.ESLint.Enabled)
	if cfg.Review.Enabled && len(cfg.Review.Tools) > 0 {
		exts := make([]string, 0, len(cfg.Review.Tools))
		for ext := range cfg.Review.Tools {
			exts = append(exts, ext)
		}
		sort.Strings(exts)
		for _, ext := range exts {
			fmt.Printf("  %-18s %s (%s)\n", "Review tool:", cfg.Review.Tools[ext], ext)
		}
	}

	if cfg.Observability.OTLPEndpoint != "" {
		fmt.Println()
		fmt.Printf("  %-18s %s (%s)\n", "OTLP endpoint:", cfg.Observability.OTLPEndpoint, cfg.Observability.Protocol)
	}

	fmt.Println()
	fmt.Println("  API keys:")
	printMaskedKey("OpenAI", cfg.OpenAIKey)
	printMaskedKey("Anthropic", cfg.AnthropicKey)
}

func printMaskedKey(name, apiKey string) {
	if apiKey == "" {
		fmt.Printf("    %-12s (not configured)\n", name+":")
		return
	}
	masked := "****"
	if len(apiKey) >= 12 {
		masked = apiKey[:4] + strings.Repeat("*", len(apiKey)-8) + apiKey[len(apiKey)-4:]
	}
	fmt.Printf("    %-12s %s\n", name+":", masked)
}
