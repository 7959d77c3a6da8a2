package tools

import (
	"context"
	"strings"

	"github.com/myclaw/myclaw/internal/workspace"
)

// ListFilesTool lists one directory level.
type ListFilesTool struct {
	ws *workspace.Workspace
}

func NewListFilesTool(ws *workspace.Workspace) *ListFilesTool {
	return &ListFilesTool{ws: ws}
}

func (t *ListFilesTool) Name() string        { return "list_files" }
func (t *ListFilesTool) Description() string { return "List the entries of a workspace directory" }
func (t *ListFilesTool) Mutating() bool      { return false }

func (t *ListFilesTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory to list, relative to the workspace root (default \".\")",
			},
		},
	}
}

func (t *ListFilesTool) Execute(_ context.Context, args map[string]interface{}) *Result {
	path := argString(args, "path")
	if path == "" {
		path = "."
	}
	entries, err := t.ws.ListDir(path)
	if err != nil {
		return ErrorResult(err.Error())
	}
	if len(entries) == 0 {
		return NewResult("(empty directory)")
	}
	return NewResult(strings.Join(entries, "\n"))
}
