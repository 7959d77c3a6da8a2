// Package workspace provides sandboxed filesystem and shell primitives rooted
// at a single directory. Every path handed to a Workspace method is resolved
// to a canonical absolute path and rejected when it escapes the root, so
// callers can pass model-supplied paths through without further vetting.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrOutsideWorkspace marks paths that resolve outside the workspace root.
	ErrOutsideWorkspace = errors.New("path outside workspace")
	// ErrEmptySearch marks apply-patch calls with no search text.
	ErrEmptySearch = errors.New("search text is empty")
	// ErrSearchNotFound marks apply-patch calls whose search text is absent.
	ErrSearchNotFound = errors.New("search text not found")
)

// Workspace is a filesystem sandbox rooted at a canonical absolute directory.
type Workspace struct {
	root string
}

// New resolves root to its canonical absolute form and returns a workspace
// bound to it. A root that does not exist yet is kept as-is so the first
// write can create it.
func New(root string) (*Workspace, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		real = abs
	}
	return &Workspace{root: real}, nil
}

// Root returns the canonical workspace root.
func (w *Workspace) Root() string { return w.root }

// Resolve maps path (absolute or workspace-relative) to a canonical absolute
// path and validates that it stays inside the workspace root. Symlinks are
// resolved before the containment check so a link cannot smuggle access to
// the outside; for paths that do not exist yet the deepest existing ancestor
// is canonicalized and the remaining components are appended.
func (w *Workspace) Resolve(path string) (string, error) {
	var resolved string
	if filepath.IsAbs(path) {
		resolved = filepath.Clean(path)
	} else {
		resolved = filepath.Clean(filepath.Join(w.root, path))
	}

	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("workspace.path_resolve_failed", "path", path, "error", err)
			return "", fmt.Errorf("resolve %s: %w", path, ErrOutsideWorkspace)
		}
		if info, lerr := os.Lstat(abs); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
			// Dangling symlink: follow its target manually and validate that.
			target, rerr := os.Readlink(abs)
			if rerr != nil {
				return "", fmt.Errorf("resolve %s: %w", path, ErrOutsideWorkspace)
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(abs), target)
			}
			real = resolveThroughAncestors(filepath.Clean(target))
		} else {
			real = resolveThroughAncestors(abs)
		}
	}

	if !isPathInside(real, w.root) {
		slog.Warn("workspace.path_escape", "path", path, "resolved", real, "root", w.root)
		return "", fmt.Errorf("resolve %s: %w", path, ErrOutsideWorkspace)
	}
	return real, nil
}

// Rel returns the workspace-relative form of a resolved absolute path.
func (w *Workspace) Rel(abs string) string {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return abs
	}
	return rel
}

// Exists reports whether path resolves inside the workspace and exists.
func (w *Workspace) Exists(path string) bool {
	resolved, err := w.Resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(resolved)
	return err == nil
}

// ReadText reads a file inside the workspace and returns its contents.
func (w *Workspace) ReadText(path string) (string, error) {
	resolved, err := w.Resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteText writes content to a file inside the workspace, creating parent
// directories as needed.
func (w *Workspace) WriteText(path, content string) error {
	resolved, err := w.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ListDir lists the entries of a directory inside the workspace. Directory
// names carry a trailing separator; entries are sorted by name.
func (w *Workspace) ListDir(path string) ([]string, error) {
	resolved, err := w.Resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += string(filepath.Separator)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// isPathInside checks whether child is inside or equal to parent directory.
func isPathInside(child, parent string) bool {
	if child == parent {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}

// resolveThroughAncestors canonicalizes a path whose tail may not exist by
// resolving the deepest existing ancestor and re-appending the remaining
// components. Catches symlinked intermediate directories for new files.
func resolveThroughAncestors(target string) string {
	if real, err := filepath.EvalSymlinks(target); err == nil {
		return real
	}
	current := target
	var tail []string
	for {
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		tail = append([]string{filepath.Base(current)}, tail...)
		current = parent
		if realParent, err := filepath.EvalSymlinks(current); err == nil {
			result := realParent
			for _, component := range tail {
				result = filepath.Join(result, component)
			}
			return result
		}
	}
	return filepath.Clean(target)
}
