package workspace

import (
	"fmt"
	"strings"
)

// ApplyPatch replaces search with replace in the named file and reports how
// many occurrences were rewritten. With replaceAll=false only the first
// occurrence changes. An empty or absent search text is an error so a sloppy
// patch cannot silently rewrite nothing.
func (w *Workspace) ApplyPatch(path, search, replace string, replaceAll bool) (int, error) {
	if search == "" {
		return 0, ErrEmptySearch
	}
	content, err := w.ReadText(path)
	if err != nil {
		return 0, err
	}
	count := strings.Count(content, search)
	if count == 0 {
		return 0, fmt.Errorf("%w in %s", ErrSearchNotFound, path)
	}
	if !replaceAll {
		count = 1
	}
	patched := strings.Replace(content, search, replace, count)
	if err := w.WriteText(path, patched); err != nil {
		return 0, err
	}
	return count, nil
}
