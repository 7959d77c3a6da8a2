package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/myclaw/myclaw/internal/bootstrap"
	"github.com/myclaw/myclaw/internal/config"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive setup: write the config and seed the home directory",
		Run: func(cmd *cobra.Command, args []string) {
			runInit()
		},
	}
}

func runInit() {
	cfgPath := resolveConfigPath()

	// Start from the effective config so re-running init edits instead of
	// resetting.
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	eslint := cfg.Runtime.Checks.ESLint.Enabled
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Provider").
				Description("Which model API should myclaw talk to?").
				Options(
					huh.NewOption("OpenAI (or any OpenAI-compatible endpoint)", "openai"),
					huh.NewOption("Anthropic", "anthropic"),
					huh.NewOption("Mock (offline echo, for trying the CLI)", "mock"),
				).
				Value(&cfg.Provider),
			huh.NewInput().
				Title("Model").
				Description("Leave empty for the provider default.").
				Value(&cfg.Model),
			huh.NewInput().
				Title("Workspace").
				Description("Directory the agent works in. Empty means the current directory at run time.").
				Value(&cfg.Workspace),
			huh.NewConfirm().
				Title("Run ESLint after JavaScript/TypeScript writes?").
				Value(&eslint),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.Runtime.Checks.ESLint.Enabled = eslint

	if err := config.Save(cfgPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not save config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Config saved to %s\n", cfgPath)

	created, err := bootstrap.EnsureHome(cfg.HomeDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not prepare %s: %v\n", cfg.HomeDir, err)
		os.Exit(1)
	}
	for _, name := range created {
		fmt.Printf("Seeded %s\n", filepath.Join(cfg.HomeDir, name))
	}

	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIKey == "" {
			fmt.Printf("\nSet OPENAI_API_KEY in your environment or in %s\n", filepath.Join(cfg.HomeDir, ".env"))
		}
	case "anthropic":
		if cfg.AnthropicKey == "" {
			fmt.Printf("\nSet ANTHROPIC_API_KEY in your environment or in %s\n", filepath.Join(cfg.HomeDir, ".env"))
		}
	}
	fmt.Println("\nRun \"myclaw doctor\" to verify the setup, then \"myclaw chat\" to start.")
}
