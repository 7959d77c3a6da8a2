package workspace

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// searchLimit caps the number of hits a single search may return so a broad
// query over a large tree cannot flood the model context.
const searchLimit = 200

// Search walks subtree depth-first and returns workspace-relative paths whose
// entry name or relative path contains query, case-insensitively. The .git
// directory is skipped. Results are capped at searchLimit hits.
func (w *Workspace) Search(query, subtree string) ([]string, error) {
	start, err := w.Resolve(subtree)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)

	var hits []string
	err = filepath.WalkDir(start, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if entry.IsDir() && entry.Name() == ".git" {
			return filepath.SkipDir
		}
		if path == start {
			return nil
		}
		rel := w.Rel(path)
		if strings.Contains(strings.ToLower(entry.Name()), needle) ||
			strings.Contains(strings.ToLower(rel), needle) {
			if entry.IsDir() {
				rel += string(filepath.Separator)
			}
			hits = append(hits, rel)
			if len(hits) >= searchLimit {
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}
