package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/myclaw/myclaw/internal/config"
	"github.com/myclaw/myclaw/internal/tools"
)

func runCmd() *cobra.Command {
	var (
		workspacePath string
		approveAll    bool
	)

	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Run one agent turn and print the result",
		Long: `Run a single task in one agent turn and print the final answer.

Examples:
  myclaw run "list the TODOs in this project"
  myclaw run -w ~/src/app "fix the failing test in parser_test.go"
  myclaw run --approve "remove the build artifacts"`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runOneShot(strings.Join(args, " "), workspacePath, approveAll)
		},
	}

	cmd.Flags().StringVarP(&workspacePath, "workspace", "w", "", "workspace directory (default: config workspace or current directory)")
	cmd.Flags().BoolVar(&approveAll, "approve", false, "pre-approve destructive shell commands")

	return cmd
}

func runOneShot(task, workspacePath string, approveAll bool) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var approve tools.ApprovalFunc
	if approveAll {
		approve = func(string) bool { return true }
	}

	a, err := newApp(ctx, approve)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.shutdown(context.Background())

	if workspacePath == "" {
		workspacePath = a.cfg.WorkspacePath()
	} else {
		workspacePath = config.ExpandHome(workspacePath)
	}

	sess, err := a.engine.CreateSession(ctx, workspacePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitAfterShutdown(a, 1)
	}

	result, err := a.engine.Run(ctx, sess.ID, task)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		a.engine.CloseSession(sess.ID, "error")
		exitAfterShutdown(a, 1)
	}

	fmt.Println(result.Content)
	a.engine.CloseSession(sess.ID, "completed")
}

// exitAfterShutdown flushes the app before exiting; os.Exit skips deferred
// calls, so the flush has to happen here.
func exitAfterShutdown(a *app, code int) {
	a.shutdown(context.Background())
	os.Exit(code)
}
