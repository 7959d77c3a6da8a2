package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/myclaw/myclaw/internal/config"
	"github.com/myclaw/myclaw/internal/usage"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("myclaw doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	// Config
	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Config invalid: %s\n", err)
	}

	// Providers
	fmt.Println()
	fmt.Println("  Providers:")
	active := cfg.Provider
	if cfg.Model != "" {
		active += " (model " + cfg.Model + ")"
	}
	fmt.Printf("    %-12s %s\n", "Active:", active)
	printMaskedKey("OpenAI", cfg.OpenAIKey)
	printMaskedKey("Anthropic", cfg.AnthropicKey)

	// External tools the shell tool and the async checks reach for
	fmt.Println()
	fmt.Println("  External Tools:")
	checkBinary("git")
	checkBinary("node")
	checkBinary("npx")
	checkBinary("python3")
	if shell := os.Getenv("SHELL"); shell != "" {
		checkBinary(filepath.Base(shell))
	}

	// Home layout
	fmt.Println()
	fmt.Println("  Home:")
	checkPath("Directory", cfg.HomeDir)
	checkPath("Sessions", cfg.SessionsDir())
	checkPath("Metrics", cfg.MetricsDir())
	checkPath("Memory", cfg.MemoryPath())
	checkPath("Profile", cfg.ProfilePath())

	// Workspace
	fmt.Println()
	ws := cfg.WorkspacePath()
	fmt.Printf("  Workspace: %s", ws)
	if _, err := os.Stat(ws); err != nil {
		fmt.Println(" (NOT FOUND)")
	} else {
		fmt.Println(" (OK)")
	}

	// Usage ledger
	fmt.Println()
	fmt.Println("  Usage:")
	printUsageTotals(cfg.UsagePath())

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func printUsageTotals(path string) {
	if _, err := os.Stat(path); err != nil {
		fmt.Println("    (no usage recorded yet)")
		return
	}
	ledger, err := usage.Open(path)
	if err != nil {
		fmt.Printf("    (could not open ledger: %s)\n", err)
		return
	}
	defer ledger.Close()

	totals, err := ledger.Totals()
	if err != nil {
		fmt.Printf("    (could not read ledger: %s)\n", err)
		return
	}
	fmt.Printf("    %-12s %d\n", "Sessions:", totals.Sessions)
	fmt.Printf("    %-12s %d\n", "Turns:", totals.Turns)
	fmt.Printf("    %-12s %d (%d failed)\n", "Tool calls:", totals.ToolCalls, totals.ToolErrors)
	fmt.Printf("    %-12s %d\n", "Model calls:", totals.ModelCalls)
	if totals.OscillationAlerts > 0 {
		fmt.Printf("    %-12s %d\n", "Loop alerts:", totals.OscillationAlerts)
	}

	rows, err := ledger.Recent(3)
	if err != nil || len(rows) == 0 {
		return
	}
	fmt.Println("    Recent sessions:")
	for _, r := range rows {
		id := r.SessionID
		if len(id) > 8 {
			id = id[:8]
		}
		ended := r.EndedAt
		if ended.IsZero() {
			ended = r.StartedAt
		}
		fmt.Printf("      %-10s %s  %d turns, %d tool calls\n",
			id, ended.Local().Format("2006-01-02 15:04"), r.Turns, r.ToolCalls)
	}
}

func checkBinary(name string) {
	path, err := exec.LookPath(name)
	if err != nil {
		fmt.Printf("    %-12s NOT FOUND\n", name+":")
	} else {
		fmt.Printf("    %-12s %s\n", name+":", path)
	}
}

func checkPath(label, path string) {
	fmt.Printf("    %-12s %s", label+":", path)
	if _, err := os.Stat(path); err != nil {
		fmt.Println(" (missing)")
	} else {
		fmt.Println()
	}
}
