package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/myclaw/myclaw/internal/sessions"
	"github.com/myclaw/myclaw/internal/workspace"
)

func newTestEnv(t *testing.T) (*workspace.Workspace, *sessions.Session) {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	sess := sessions.New("test-session", nil, ws.Root(), "", "", sessions.Settings{})
	return ws, sess
}

func seedFile(t *testing.T, ws *workspace.Workspace, name, content string) string {
	t.Helper()
	path := filepath.Join(ws.Root(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	resolved, err := ws.Resolve(name)
	if err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	return resolved
}

// --- read/write rail tests ---

// TestWriteFileRequiresRead verifies that writing an existing file is rejected
// until the session has read it, and succeeds afterwards.
func TestWriteFileRequiresRead(t *testing.T) {
	ws, sess := newTestEnv(t)
	resolved := seedFile(t, ws, "main.py", "print('old')\n")

	wr := NewWriteFileTool(ws, sess)
	res := wr.Execute(context.Background(), map[string]interface{}{
		"path": "main.py", "content": "print('new')\n",
	})
	if res.OK {
		t.Fatalf("write before read succeeded: %q", res.Output)
	}
	if !strings.Contains(res.Output, "must be read_file first") {
		t.Errorf("output = %q, want read-first rejection", res.Output)
	}
	if got, _ := ws.ReadText("main.py"); got != "print('old')\n" {
		t.Errorf("file changed despite rejection: %q", got)
	}

	rd := NewReadFileTool(ws, sess)
	if res := rd.Execute(context.Background(), map[string]interface{}{"path": "main.py"}); !res.OK {
		t.Fatalf("read_file: %q", res.Output)
	}
	if !sess.HasRead(resolved) {
		t.Fatal("read_file did not record the canonical path")
	}

	res = wr.Execute(context.Background(), map[string]interface{}{
		"path": "main.py", "content": "print('new')\n",
	})
	if !res.OK || !res.Mutation {
		t.Fatalf("write after read: ok=%v mutation=%v output=%q", res.OK, res.Mutation, res.Output)
	}
	if res.Path != resolved {
		t.Errorf("result path = %q, want %q", res.Path, resolved)
	}
	if got, _ := ws.ReadText("main.py"); got != "print('new')\n" {
		t.Errorf("file content = %q after write", got)
	}
}

// TestWriteFileCreateGuard verifies that creating a new file requires
// allowCreate and that a created file counts as read.
func TestWriteFileCreateGuard(t *testing.T) {
	ws, sess := newTestEnv(t)
	wr := NewWriteFileTool(ws, sess)

	res := wr.Execute(context.Background(), map[string]interface{}{
		"path": "fresh.txt", "content": "hello",
	})
	if res.OK || !strings.Contains(res.Output, "does not exist") {
		t.Fatalf("create without allowCreate: ok=%v output=%q", res.OK, res.Output)
	}
	if ws.Exists("fresh.txt") {
		t.Fatal("file created despite rejection")
	}

	res = wr.Execute(context.Background(), map[string]interface{}{
		"path": "fresh.txt", "content": "hello", "allowCreate": true,
	})
	if !res.OK || !res.Mutation {
		t.Fatalf("create with allowCreate: ok=%v output=%q", res.OK, res.Output)
	}

	// The created file may be overwritten without an intervening read.
	res = wr.Execute(context.Background(), map[string]interface{}{
		"path": "fresh.txt", "content": "hello again",
	})
	if !res.OK {
		t.Fatalf("rewrite of created file rejected: %q", res.Output)
	}
}

// TestApplyPatchRail verifies the missing-file and read-first rejections and a
// successful replacement.
func TestApplyPatchRail(t *testing.T) {
	ws, sess := newTestEnv(t)
	seedFile(t, ws, "config.ini", "level=1\nlevel=1\n")
	ap := NewApplyPatchTool(ws, sess)

	res := ap.Execute(context.Background(), map[string]interface{}{
		"path": "ghost.ini", "search": "a", "replace": "b",
	})
	if res.OK || !strings.Contains(res.Output, "does not exist") {
		t.Fatalf("patch of missing file: ok=%v output=%q", res.OK, res.Output)
	}

	res = ap.Execute(context.Background(), map[string]interface{}{
		"path": "config.ini", "search": "level=1", "replace": "level=2",
	})
	if res.OK || !strings.Contains(res.Output, "must be read_file first") {
		t.Fatalf("patch before read: ok=%v output=%q", res.OK, res.Output)
	}

	rd := NewReadFileTool(ws, sess)
	rd.Execute(context.Background(), map[string]interface{}{"path": "config.ini"})

	res = ap.Execute(context.Background(), map[string]interface{}{
		"path": "config.ini", "search": "level=1", "replace": "level=2", "replaceAll": true,
	})
	if !res.OK || !res.Mutation {
		t.Fatalf("patch after read: ok=%v output=%q", res.OK, res.Output)
	}
	if !strings.Contains(res.Output, "replaced 2 occurrence(s)") {
		t.Errorf("output = %q, want replacement count", res.Output)
	}
	if got, _ := ws.ReadText("config.ini"); got != "level=2\nlevel=2\n" {
		t.Errorf("file content = %q after patch", got)
	}
}

// TestReadFileOutsideWorkspace verifies containment errors surface as ok=false
// results.
func TestReadFileOutsideWorkspace(t *testing.T) {
	ws, sess := newTestEnv(t)
	rd := NewReadFileTool(ws, sess)

	res := rd.Execute(context.Background(), map[string]interface{}{"path": "../escape.txt"})
	if res.OK {
		t.Fatalf("read outside workspace succeeded: %q", res.Output)
	}
	if !strings.Contains(res.Output, "outside workspace") {
		t.Errorf("output = %q, want containment error", res.Output)
	}
}

// --- shell tests ---

// TestIsDestructive exercises the destructive pattern set.
func TestIsDestructive(t *testing.T) {
	tests := []struct {
		command string
		want    bool
	}{
		{"rm -rf task", true},
		{"rmdir build", true},
		{"unlink data.bin", true},
		{"git reset --hard HEAD~1", true},
		{"git clean -fd", true},
		{"mv precious.txt /dev/null", true},
		{"ls -la", false},
		{"git status", false},
		{"python3 main.py", false},
	}
	for _, tt := range tests {
		if got := IsDestructive(tt.command); got != tt.want {
			t.Errorf("IsDestructive(%q) = %v, want %v", tt.command, got, tt.want)
		}
	}
}

// TestRunShellDestructiveApproval verifies that denial (and an absent
// callback) blocks the command without executing it, and approval lets it run.
func TestRunShellDestructiveApproval(t *testing.T) {
	ws, _ := newTestEnv(t)
	seedFile(t, ws, "victim.txt", "data")

	deny := NewRunShellTool(ws, func(string) bool { return false })
	res := deny.Execute(context.Background(), map[string]interface{}{"command": "rm victim.txt"})
	if res.OK || !strings.Contains(res.Output, "destructive command blocked") {
		t.Fatalf("denied command: ok=%v output=%q", res.OK, res.Output)
	}
	if !ws.Exists("victim.txt") {
		t.Fatal("denied command still executed")
	}

	absent := NewRunShellTool(ws, nil)
	res = absent.Execute(context.Background(), map[string]interface{}{"command": "rm victim.txt"})
	if res.OK || !strings.Contains(res.Output, "destructive command blocked") {
		t.Fatalf("absent callback: ok=%v output=%q", res.OK, res.Output)
	}

	allow := NewRunShellTool(ws, func(string) bool { return true })
	res = allow.Execute(context.Background(), map[string]interface{}{"command": "rm victim.txt"})
	if !res.OK || !strings.Contains(res.Output, "exit_code=0") {
		t.Fatalf("approved command: ok=%v output=%q", res.OK, res.Output)
	}
	if ws.Exists("victim.txt") {
		t.Fatal("approved command did not execute")
	}
}

// TestRunShellReportsExit verifies non-zero exits keep ok=true with the code
// embedded in the report.
func TestRunShellReportsExit(t *testing.T) {
	ws, _ := newTestEnv(t)
	sh := NewRunShellTool(ws, nil)

	res := sh.Execute(context.Background(), map[string]interface{}{"command": "exit 7"})
	if !res.OK {
		t.Fatalf("non-zero exit flipped ok: %q", res.Output)
	}
	if !strings.HasPrefix(res.Output, "exit_code=7\n") {
		t.Errorf("output = %q, want exit_code=7 prefix", res.Output)
	}
}

// TestRunShellRejectsOutsideCwd verifies that an escaping working directory is
// rejected before anything runs.
func TestRunShellRejectsOutsideCwd(t *testing.T) {
	ws, _ := newTestEnv(t)
	sh := NewRunShellTool(ws, nil)

	res := sh.Execute(context.Background(), map[string]interface{}{"command": "pwd", "cwd": ".."})
	if res.OK {
		t.Fatalf("escaping cwd accepted: %q", res.Output)
	}
}

// --- sanitize tests ---

// TestSanitizeContent covers bare carriage returns and raw control characters
// inside double-quoted strings.
func TestSanitizeContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare CR outside string",
			in:   "alpha\rbeta",
			want: `alpha\rbeta`,
		},
		{
			name: "CRLF outside string untouched",
			in:   "alpha\r\nbeta",
			want: "alpha\r\nbeta",
		},
		{
			name: "newline inside string",
			in:   "x = \"hello\nworld\"",
			want: `x = "hello\nworld"`,
		},
		{
			name: "CRLF inside string",
			in:   "x = \"a\r\nb\"",
			want: `x = "a\r\nb"`,
		},
		{
			name: "escaped quote does not close string",
			in:   "say(\"she said \\\"hi\\\"\nbye\")",
			want: `say("she said \"hi\"\nbye")`,
		},
		{
			name: "plain code untouched",
			in:   "def f():\n    return \"ok\"\n",
			want: "def f():\n    return \"ok\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeContent(tt.in); got != tt.want {
				t.Errorf("SanitizeContent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// --- registry tests ---

type panicTool struct{}

func (panicTool) Name() string        { return "boom" }
func (panicTool) Description() string { return "always panics" }
func (panicTool) Mutating() bool      { return false }

func (panicTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}

func (panicTool) Execute(context.Context, map[string]interface{}) *Result {
	panic("kaboom")
}

// TestCatalogDefinitions verifies the standard catalog exposes all six tools
// in registration order.
func TestCatalogDefinitions(t *testing.T) {
	ws, sess := newTestEnv(t)
	reg := Catalog(ws, sess, nil)

	want := []string{"read_file", "write_file", "apply_patch", "list_files", "search_workspace", "run_shell"}
	defs := reg.Definitions()
	if len(defs) != len(want) {
		t.Fatalf("definitions = %d, want %d", len(defs), len(want))
	}
	for i, d := range defs {
		if d.Type != "function" {
			t.Errorf("defs[%d].Type = %q", i, d.Type)
		}
		if d.Function.Name != want[i] {
			t.Errorf("defs[%d].Name = %q, want %q", i, d.Function.Name, want[i])
		}
	}
}

// TestRegistryUnknownTool verifies unknown names yield an ok=false result.
func TestRegistryUnknownTool(t *testing.T) {
	reg := NewRegistry()
	res := reg.Execute(context.Background(), "nope", nil)
	if res.OK || !strings.Contains(res.Output, "unknown tool") {
		t.Errorf("unknown tool: ok=%v output=%q", res.OK, res.Output)
	}
}

// TestRegistryRecoversPanic verifies a panicking tool is converted into an
// error result.
func TestRegistryRecoversPanic(t *testing.T) {
	reg := NewRegistry(panicTool{})
	res := reg.Execute(context.Background(), "boom", nil)
	if res.OK {
		t.Fatal("panic produced ok result")
	}
	if !strings.Contains(res.Output, "panicked") || !strings.Contains(res.Output, "kaboom") {
		t.Errorf("output = %q, want panic report", res.Output)
	}
}

// TestSearchWorkspaceTool verifies matching, the no-match placeholder, and the
// required-query rejection.
func TestSearchWorkspaceTool(t *testing.T) {
	ws, _ := newTestEnv(t)
	seedFile(t, ws, "report_main.txt", "x")
	seedFile(t, ws, "other.txt", "x")
	st := NewSearchWorkspaceTool(ws)

	res := st.Execute(context.Background(), map[string]interface{}{"query": "Report"})
	if !res.OK || !strings.Contains(res.Output, "report_main.txt") {
		t.Errorf("search hit: ok=%v output=%q", res.OK, res.Output)
	}
	if strings.Contains(res.Output, "other.txt") {
		t.Errorf("search leaked non-match: %q", res.Output)
	}

	res = st.Execute(context.Background(), map[string]interface{}{"query": "zzz-nothing"})
	if !res.OK || res.Output != "(no matches)" {
		t.Errorf("no-match: ok=%v output=%q", res.OK, res.Output)
	}

	res = st.Execute(context.Background(), map[string]interface{}{})
	if res.OK || !strings.Contains(res.Output, "query is required") {
		t.Errorf("missing query: ok=%v output=%q", res.OK, res.Output)
	}
}
