package tools

import (
	"context"
	"strings"

	"github.com/myclaw/myclaw/internal/workspace"
)

// SearchWorkspaceTool finds entries by name or relative path.
type SearchWorkspaceTool struct {
	ws *workspace.Workspace
}

func NewSearchWorkspaceTool(ws *workspace.Workspace) *SearchWorkspaceTool {
	return &SearchWorkspaceTool{ws: ws}
}

func (t *SearchWorkspaceTool) Name() string { return "search_workspace" }
func (t *SearchWorkspaceTool) Description() string {
	return "Search the workspace for files and directories whose name or path contains a query"
}
func (t *SearchWorkspaceTool) Mutating() bool { return false }

func (t *SearchWorkspaceTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Case-insensitive substring to match",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Subtree to search, relative to the workspace root (default \".\")",
			},
		},
		"required": []string{"query"},
	}
}

func (t *SearchWorkspaceTool) Execute(_ context.Context, args map[string]interface{}) *Result {
	query := argString(args, "query")
	if query == "" {
		return ErrorResult("query is required")
	}
	subtree := argString(args, "path")
	if subtree == "" {
		subtree = "."
	}

	hits, err := t.ws.Search(query, subtree)
	if err != nil {
		return ErrorResult(err.Error())
	}
	if len(hits) == 0 {
		return NewResult("(no matches)")
	}
	return NewResult(strings.Join(hits, "\n"))
}
