package tools

import (
	"context"
	"fmt"

	"github.com/myclaw/myclaw/internal/sessions"
	"github.com/myclaw/myclaw/internal/workspace"
)

// ApplyPatchTool performs a search/replace edit on a file the session has
// already read.
type ApplyPatchTool struct {
	ws   *workspace.Workspace
	sess *sessions.Session
}

func NewApplyPatchTool(ws *workspace.Workspace, sess *sessions.Session) *ApplyPatchTool {
	return &ApplyPatchTool{ws: ws, sess: sess}
}

func (t *ApplyPatchTool) Name() string { return "apply_patch" }
func (t *ApplyPatchTool) Description() string {
	return "Replace text in a file. The file must have been read first"
}
func (t *ApplyPatchTool) Mutating() bool { return true }

func (t *ApplyPatchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file, relative to the workspace root",
			},
			"search": map[string]interface{}{
				"type":        "string",
				"description": "Exact text to find",
			},
			"replace": map[string]interface{}{
				"type":        "string",
				"description": "Replacement text",
			},
			"replaceAll": map[string]interface{}{
				"type":        "boolean",
				"description": "Replace every occurrence instead of the first",
			},
		},
		"required": []string{"path", "search", "replace"},
	}
}

func (t *ApplyPatchTool) Execute(_ context.Context, args map[string]interface{}) *Result {
	path := argString(args, "path")
	if path == "" {
		return ErrorResult("path is required")
	}

	resolved, err := t.ws.Resolve(path)
	if err != nil {
		return ErrorResult(err.Error())
	}
	if !t.ws.Exists(path) {
		return ErrorResult(fmt.Sprintf("file %s does not exist", path))
	}
	if !t.sess.HasRead(resolved) {
		return ErrorResult(fmt.Sprintf("file %s must be read_file first", path))
	}

	count, err := t.ws.ApplyPatch(path, argString(args, "search"), argString(args, "replace"), argBool(args, "replaceAll"))
	if err != nil {
		return ErrorResult(err.Error())
	}
	return MutatedResult(fmt.Sprintf("replaced %d occurrence(s) in %s", count, path), resolved)
}
