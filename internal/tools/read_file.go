package tools

import (
	"context"
	"fmt"

	"github.com/myclaw/myclaw/internal/sessions"
	"github.com/myclaw/myclaw/internal/workspace"
)

// ReadFileTool reads a file and records its canonical path on the session,
// unlocking later mutations of that file.
type ReadFileTool struct {
	ws   *workspace.Workspace
	sess *sessions.Session
}

func NewReadFileTool(ws *workspace.Workspace, sess *sessions.Session) *ReadFileTool {
	return &ReadFileTool{ws: ws, sess: sess}
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a file in the workspace" }
func (t *ReadFileTool) Mutating() bool      { return false }

func (t *ReadFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file, relative to the workspace root",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(_ context.Context, args map[string]interface{}) *Result {
	path := argString(args, "path")
	if path == "" {
		return ErrorResult("path is required")
	}

	resolved, err := t.ws.Resolve(path)
	if err != nil {
		return ErrorResult(err.Error())
	}
	content, err := t.ws.ReadText(path)
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to read file: %v", err))
	}

	t.sess.NoteRead(resolved)
	return NewResult(content)
}
