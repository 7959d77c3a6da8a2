package tools

import (
	"context"
	"regexp"
	"time"

	"github.com/myclaw/myclaw/internal/workspace"
)

// ApprovalFunc decides whether a destructive shell command may run. A nil
// func counts as denial.
type ApprovalFunc func(command string) bool

const shellTimeout = 60 * time.Second

var destructivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\b`),
	regexp.MustCompile(`\brmdir\b`),
	regexp.MustCompile(`\bunlink\b`),
	regexp.MustCompile(`\bdel\b`),
	regexp.MustCompile(`\brd\b`),
	regexp.MustCompile(`\bmv\b.*/dev/null`),
	regexp.MustCompile(`\bgit\s+reset\s+--hard\b`),
	regexp.MustCompile(`\bgit\s+clean\b`),
}

// IsDestructive reports whether command matches a known destructive pattern.
func IsDestructive(command string) bool {
	for _, re := range destructivePatterns {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

// RunShellTool executes commands through the platform shell with the
// workspace root as default working directory. Destructive commands go
// through the approval callback first.
type RunShellTool struct {
	ws      *workspace.Workspace
	approve ApprovalFunc
}

func NewRunShellTool(ws *workspace.Workspace, approve ApprovalFunc) *RunShellTool {
	return &RunShellTool{ws: ws, approve: approve}
}

func (t *RunShellTool) Name() string { return "run_shell" }
func (t *RunShellTool) Description() string {
	return "Run a shell command in the workspace and return its exit code with combined stdout/stderr"
}
func (t *RunShellTool) Mutating() bool { return false }

func (t *RunShellTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Shell command to execute",
			},
			"cwd": map[string]interface{}{
				"type":        "string",
				"description": "Working directory relative to the workspace root (default: the root)",
			},
		},
		"required": []string{"command"},
	}
}

func (t *RunShellTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	command := argString(args, "command")
	if command == "" {
		return ErrorResult("command is required")
	}

	dir := argString(args, "cwd")
	if dir != "" {
		if _, err := t.ws.Resolve(dir); err != nil {
			return ErrorResult(err.Error())
		}
	}

	if IsDestructive(command) {
		if t.approve == nil || !t.approve(command) {
			return ErrorResult("destructive command blocked: " + command)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, shellTimeout)
	defer cancel()

	// The report embeds failures in its exit code line, so the call itself
	// counts as executed regardless of the exit status.
	return NewResult(t.ws.RunShell(runCtx, command, dir))
}
