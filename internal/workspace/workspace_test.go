package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	w, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

// --- Resolve tests ---

// TestResolveContainment verifies that relative and absolute paths inside the
// workspace resolve, and that escaping paths fail with ErrOutsideWorkspace.
func TestResolveContainment(t *testing.T) {
	w := newTestWorkspace(t)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "relative file", path: "notes.txt", wantErr: false},
		{name: "workspace root itself", path: ".", wantErr: false},
		{name: "nested new path", path: "a/b/c.txt", wantErr: false},
		{name: "absolute inside", path: filepath.Join(w.Root(), "inner.txt"), wantErr: false},
		{name: "dotdot escape", path: "../escape.txt", wantErr: true},
		{name: "deep dotdot escape", path: "a/../../escape.txt", wantErr: true},
		{name: "absolute outside", path: "/etc/passwd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := w.Resolve(tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrOutsideWorkspace) {
					t.Errorf("Resolve(%q) err = %v, want ErrOutsideWorkspace", tt.path, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.path, err)
			}
			if !isPathInside(got, w.Root()) {
				t.Errorf("Resolve(%q) = %q, not inside root %q", tt.path, got, w.Root())
			}
		})
	}
}

// TestResolveSymlinkEscape verifies that a symlink inside the workspace whose
// target lies outside is rejected, for both live and dangling links.
func TestResolveSymlinkEscape(t *testing.T) {
	w := newTestWorkspace(t)
	outside := t.TempDir()

	target := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(target, []byte("secret"), 0o644); err != nil {
		t.Fatalf("write target: %v", err)
	}
	if err := os.Symlink(target, filepath.Join(w.Root(), "live-link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "missing.txt"), filepath.Join(w.Root(), "dangling-link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	for _, name := range []string{"live-link", "dangling-link"} {
		if _, err := w.Resolve(name); !errors.Is(err, ErrOutsideWorkspace) {
			t.Errorf("Resolve(%q) err = %v, want ErrOutsideWorkspace", name, err)
		}
	}
}

// --- file I/O tests ---

// TestWriteTextCreatesParents verifies that WriteText creates intermediate
// directories and that ReadText round-trips the content.
func TestWriteTextCreatesParents(t *testing.T) {
	w := newTestWorkspace(t)

	if err := w.WriteText("deep/nested/file.txt", "hello\n"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	got, err := w.ReadText("deep/nested/file.txt")
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if got != "hello\n" {
		t.Errorf("ReadText = %q, want %q", got, "hello\n")
	}
	if !w.Exists("deep/nested") {
		t.Error("expected parent directory to exist")
	}
}

// TestListDir verifies sorted output with a trailing separator on directories.
func TestListDir(t *testing.T) {
	w := newTestWorkspace(t)
	if err := w.WriteText("zebra.txt", ""); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if err := w.WriteText("alpha/inner.txt", ""); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	got, err := w.ListDir(".")
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	want := []string{"alpha" + string(filepath.Separator), "zebra.txt"}
	if len(got) != len(want) {
		t.Fatalf("ListDir = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ListDir[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// --- Search tests ---

// TestSearchMatching verifies case-insensitive matching on entry name and on
// the workspace-relative path, and that .git contents never surface.
func TestSearchMatching(t *testing.T) {
	w := newTestWorkspace(t)
	for _, p := range []string{
		"src/Widget.go",
		"src/util/helper.go",
		"docs/WIDGET.md",
		".git/objects/widget-blob",
	} {
		if err := w.WriteText(p, ""); err != nil {
			t.Fatalf("WriteText(%s): %v", p, err)
		}
	}

	tests := []struct {
		name      string
		query     string
		wantHit   string
		wantCount int
	}{
		{name: "name match is case-insensitive", query: "widget", wantHit: filepath.Join("src", "Widget.go"), wantCount: 2},
		{name: "path segment matches", query: "src/util", wantHit: filepath.Join("src", "util") + string(filepath.Separator), wantCount: 3},
		{name: "no match", query: "nonexistent", wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := w.Search(tt.query, ".")
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(hits) != tt.wantCount {
				t.Fatalf("Search(%q) returned %d hits %v, want %d", tt.query, len(hits), hits, tt.wantCount)
			}
			for _, h := range hits {
				if strings.Contains(h, ".git") {
					t.Errorf("Search(%q) leaked .git entry %q", tt.query, h)
				}
			}
			if tt.wantHit == "" {
				return
			}
			found := false
			for _, h := range hits {
				if h == tt.wantHit {
					found = true
				}
			}
			if !found {
				t.Errorf("Search(%q) = %v, missing %q", tt.query, hits, tt.wantHit)
			}
		})
	}
}

// TestSearchLimit verifies that results are capped at the hit limit.
func TestSearchLimit(t *testing.T) {
	w := newTestWorkspace(t)
	for i := 0; i < searchLimit+20; i++ {
		if err := w.WriteText(fmt.Sprintf("match-%03d.txt", i), ""); err != nil {
			t.Fatalf("WriteText: %v", err)
		}
	}
	hits, err := w.Search("match-", ".")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != searchLimit {
		t.Errorf("Search returned %d hits, want cap %d", len(hits), searchLimit)
	}
}

// --- ApplyPatch tests ---

// TestApplyPatch verifies empty-search rejection, absent-search rejection,
// first-occurrence replacement, and replace-all counting.
func TestApplyPatch(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		search     string
		replace    string
		replaceAll bool
		wantErr    error
		wantCount  int
		wantText   string
	}{
		{
			name:    "empty search rejected",
			content: "aaa",
			search:  "",
			wantErr: ErrEmptySearch,
		},
		{
			name:    "absent search rejected",
			content: "aaa",
			search:  "zzz",
			wantErr: ErrSearchNotFound,
		},
		{
			name:      "single replace touches first occurrence",
			content:   "one two one",
			search:    "one",
			replace:   "1",
			wantCount: 1,
			wantText:  "1 two one",
		},
		{
			name:       "replace all counts occurrences",
			content:    "one two one",
			search:     "one",
			replace:    "1",
			replaceAll: true,
			wantCount:  2,
			wantText:   "1 two 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorkspace(t)
			if err := w.WriteText("target.txt", tt.content); err != nil {
				t.Fatalf("WriteText: %v", err)
			}
			count, err := w.ApplyPatch("target.txt", tt.search, tt.replace, tt.replaceAll)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ApplyPatch err = %v, want %v", err, tt.wantErr)
				}
				got, _ := w.ReadText("target.txt")
				if got != tt.content {
					t.Errorf("file changed on rejected patch: %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyPatch: %v", err)
			}
			if count != tt.wantCount {
				t.Errorf("ApplyPatch count = %d, want %d", count, tt.wantCount)
			}
			got, err := w.ReadText("target.txt")
			if err != nil {
				t.Fatalf("ReadText: %v", err)
			}
			if got != tt.wantText {
				t.Errorf("patched content = %q, want %q", got, tt.wantText)
			}
		})
	}
}

// --- RunShell tests ---

// TestRunShell verifies the fixed exit_code output format for succeeding,
// failing, and silent commands.
func TestRunShell(t *testing.T) {
	w := newTestWorkspace(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		command string
		want    string
	}{
		{name: "stdout captured", command: "echo hi", want: "exit_code=0\nhi"},
		{name: "failure keeps exit code", command: "exit 3", want: "exit_code=3\n(no output)"},
		{name: "silent success", command: "true", want: "exit_code=0\n(no output)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := w.RunShell(ctx, tt.command, "")
			if got != tt.want {
				t.Errorf("RunShell(%q) = %q, want %q", tt.command, got, tt.want)
			}
		})
	}
}

// TestRunShellWorkingDir verifies the dir argument is resolved inside the
// workspace and escaping directories are refused.
func TestRunShellWorkingDir(t *testing.T) {
	w := newTestWorkspace(t)
	if err := w.WriteText("sub/probe.txt", ""); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	got := w.RunShell(context.Background(), "ls", "sub")
	if !strings.HasPrefix(got, "exit_code=0\n") || !strings.Contains(got, "probe.txt") {
		t.Errorf("RunShell in subdir = %q, want listing with probe.txt", got)
	}

	got = w.RunShell(context.Background(), "ls", "../outside")
	if !strings.HasPrefix(got, "exit_code=-1\n") {
		t.Errorf("RunShell outside dir = %q, want exit_code=-1 prefix", got)
	}
}
