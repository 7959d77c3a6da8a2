package subscribers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/myclaw/myclaw/internal/bus"
	"github.com/myclaw/myclaw/internal/providers"
	"github.com/myclaw/myclaw/internal/sessions"
)

const checkTimeout = 30 * time.Second

// eslintConfigFiles are probed in the workspace root to decide whether ESLint
// applies; flat config first, then the legacy forms.
var eslintConfigFiles = []string{
	"eslint.config.js", "eslint.config.mjs", "eslint.config.cjs",
	".eslintrc.js", ".eslintrc.cjs", ".eslintrc.json", ".eslintrc.yml", ".eslintrc.yaml", ".eslintrc",
}

// CheckConfig selects which soft-gate checks run after a mutation.
type CheckConfig struct {
	ESLintEnabled bool
	ReviewEnabled bool
	ReviewTools   map[string]string // extension (".go") → command ("gofmt -l")
}

// checker is one runnable check for a file.
type checker struct {
	linter string
	argv   []string
}

// checkFailure carries a failed check out of the errgroup.
type checkFailure struct {
	linter string
	output string
}

func (e *checkFailure) Error() string { return e.linter + " reported problems" }

// Checks is the soft gate: after a successful write_file or apply_patch it
// runs syntax/lint checks in the background and, on failure, enqueues a
// LINT_FAIL tool message onto the session's interrupt queue for the next
// model request. Checks never block the turn that triggered them; missing
// tool binaries skip silently.
type Checks struct {
	store *sessions.Manager
	cfg   CheckConfig

	wg sync.WaitGroup
}

func NewChecks(store *sessions.Manager, cfg CheckConfig) *Checks {
	return &Checks{store: store, cfg: cfg}
}

// Attach subscribes the gate to the bus.
func (c *Checks) Attach(b bus.Publisher) func() {
	return b.Subscribe("async_checks", c.Handle)
}

// Flush blocks until every in-flight check has settled. The results stay on
// their interrupt queues for the next turn to drain.
func (c *Checks) Flush() { c.wg.Wait() }

func (c *Checks) Handle(evt bus.Event) {
	if evt.Type != bus.EventToolResult {
		return
	}
	p, ok := evt.Payload.(bus.ToolResultPayload)
	if !ok || !p.OK || !p.Mutation || p.Path == "" {
		return
	}
	sess, err := c.store.Get(evt.SessionID)
	if err != nil {
		return
	}

	checkers := c.selectCheckers(sess.Workspace, p.Path)
	if len(checkers) == 0 {
		return
	}

	workspace, path := sess.Workspace, p.Path
	c.wg.Add(1)
	sess.Interrupts.Enqueue(func() (providers.Message, bool) {
		defer c.wg.Done()
		return c.runCheckers(workspace, path, checkers)
	})
}

// selectCheckers maps the mutated file to its applicable checks. A missing
// binary drops that check.
func (c *Checks) selectCheckers(workspace, path string) []checker {
	ext := strings.ToLower(filepath.Ext(path))
	var out []checker

	switch ext {
	case ".js", ".mjs", ".cjs":
		if node, err := exec.LookPath("node"); err == nil {
			out = append(out, checker{linter: "node", argv: []string{node, "--check", path}})
		}
	case ".py":
		if py := pythonBinary(); py != "" {
			out = append(out, checker{linter: "python", argv: []string{py, "-m", "py_compile", path}})
		}
	}

	switch ext {
	case ".ts", ".tsx", ".js", ".jsx":
		if c.cfg.ESLintEnabled && hasESLintConfig(workspace) {
			if npx, err := exec.LookPath("npx"); err == nil {
				out = append(out, checker{linter: "eslint", argv: []string{npx, "--no-install", "eslint", "--no-color", path}})
			}
		}
	}

	if c.cfg.ReviewEnabled {
		if command, ok := c.cfg.ReviewTools[ext]; ok && command != "" {
			fields := strings.Fields(command)
			if bin, err := exec.LookPath(fields[0]); err == nil {
				argv := append([]string{bin}, fields[1:]...)
				out = append(out, checker{linter: fields[0], argv: append(argv, path)})
			}
		}
	}
	return out
}

// runCheckers executes the file's checks concurrently. The first failure
// cancels the rest and becomes the LINT_FAIL payload; all-green settles with
// no interrupt.
func (c *Checks) runCheckers(workspace, path string, checkers []checker) (providers.Message, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for _, chk := range checkers {
		chk := chk
		g.Go(func() error {
			cmd := exec.CommandContext(ctx, chk.argv[0], chk.argv[1:]...)
			cmd.Dir = workspace
			out, err := cmd.CombinedOutput()
			if err == nil {
				return nil
			}
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				// Launch failure (binary vanished, context cancelled):
				// degrade to a silent skip, not a lint failure.
				return nil
			}
			return &checkFailure{linter: chk.linter, output: strings.TrimSpace(string(out))}
		})
	}

	err := g.Wait()
	if err == nil {
		var zero providers.Message
		return zero, false
	}

	var fail *checkFailure
	if !errors.As(err, &fail) {
		var zero providers.Message
		return zero, false
	}

	rel := path
	if r, rerr := filepath.Rel(workspace, path); rerr == nil {
		rel = r
	}
	slog.Debug("async check failed", "file", rel, "linter", fail.linter)

	body, merr := json.Marshal(struct {
		File   string `json:"file"`
		Linter string `json:"linter"`
		Output string `json:"output"`
	}{File: rel, Linter: fail.linter, Output: truncateOutput(fail.output, 1500)})
	if merr != nil {
		var zero providers.Message
		return zero, false
	}

	return providers.Message{
		Role:       "tool",
		Content:    "LINT_FAIL " + string(body),
		ToolCallID: "check-" + uuid.NewString()[:8],
		ToolName:   "async_check",
	}, true
}

func pythonBinary() string {
	if py, err := exec.LookPath("python3"); err == nil {
		return py
	}
	if py, err := exec.LookPath("python"); err == nil {
		return py
	}
	return ""
}

func hasESLintConfig(workspace string) bool {
	for _, name := range eslintConfigFiles {
		if _, err := os.Stat(filepath.Join(workspace, name)); err == nil {
			return true
		}
	}
	return false
}

func truncateOutput(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
