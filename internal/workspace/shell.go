package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// RunShell executes command through the platform shell with dir as working
// directory (workspace root when empty) and returns a fixed-format report:
// "exit_code=N\n" followed by the combined stdout/stderr, or "(no output)".
// Failures never surface as errors; they are encoded in the exit code line.
func (w *Workspace) RunShell(ctx context.Context, command, dir string) string {
	cwd := w.root
	if dir != "" {
		resolved, err := w.Resolve(dir)
		if err != nil {
			return fmt.Sprintf("exit_code=-1\n%v", err)
		}
		cwd = resolved
	}

	cmd := shellCommand(ctx, command)
	cmd.Dir = cwd

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	code := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			code = -1
			fmt.Fprintf(&buf, "\ncommand timed out")
		case errors.As(err, &exitErr):
			code = exitErr.ExitCode()
		default:
			code = -1
			fmt.Fprintf(&buf, "%v", err)
		}
	}

	output := strings.TrimSpace(buf.String())
	if output == "" {
		output = "(no output)"
	}
	return fmt.Sprintf("exit_code=%d\n%s", code, output)
}

// shellCommand picks the interpreter: the user's $SHELL when set, the system
// command processor on Windows, and sh otherwise.
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		comspec := os.Getenv("ComSpec")
		if comspec == "" {
			comspec = "cmd.exe"
		}
		return exec.CommandContext(ctx, comspec, "/C", command)
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return exec.CommandContext(ctx, shell, "-c", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}
