// Package bootstrap prepares the myclaw home directory on first run: the
// state subdirectories and the seeded memory file.
package bootstrap

import (
	"embed"
	"log/slog"
	"os"
	"path/filepath"
)

//go:embed templates/*.md
var templateFS embed.FS

// MemoryFile is the durable memory document; its contents are injected into
// every session's system prompt.
const MemoryFile = "memory.md"

// homeSubdirs are created under the home directory, in order.
var homeSubdirs = []string{"sessions", "metrics"}

// ReadTemplate returns the content of an embedded template file.
func ReadTemplate(name string) (string, error) {
	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// EnsureHome prepares a home directory: the directory itself, the sessions/
// and metrics/ subdirectories, and a seeded memory.md. Existing files are
// never overwritten. Returns the list of files that were created.
func EnsureHome(homeDir string) ([]string, error) {
	if err := os.MkdirAll(homeDir, 0755); err != nil {
		return nil, err
	}
	for _, sub := range homeSubdirs {
		if err := os.MkdirAll(filepath.Join(homeDir, sub), 0755); err != nil {
			return nil, err
		}
	}

	var created []string
	ok, err := seedTemplate(homeDir, MemoryFile)
	if err != nil {
		slog.Warn("bootstrap: failed to seed template", "file", MemoryFile, "error", err)
	} else if ok {
		created = append(created, MemoryFile)
	}
	return created, nil
}

// seedTemplate writes a template file into dir if it doesn't exist.
// Returns true if the file was created, false if it already exists.
func seedTemplate(dir, name string) (bool, error) {
	dstPath := filepath.Join(dir, name)

	// Only create if file doesn't exist (O_EXCL)
	f, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil // already exists, skip
		}
		return false, err
	}
	defer f.Close()

	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		os.Remove(dstPath) // clean up empty file
		return false, err
	}

	if _, err := f.Write(content); err != nil {
		return false, err
	}

	return true, nil
}
