package tools

import (
	"context"
	"fmt"

	"github.com/myclaw/myclaw/internal/sessions"
	"github.com/myclaw/myclaw/internal/workspace"
)

// WriteFileTool writes a whole file, guarded by the session rails: an
// existing file must have been read first, and a missing file is only
// created when allowCreate is set.
type WriteFileTool struct {
	ws   *workspace.Workspace
	sess *sessions.Session
}

func NewWriteFileTool(ws *workspace.Workspace, sess *sessions.Session) *WriteFileTool {
	return &WriteFileTool{ws: ws, sess: sess}
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Write content to a file. Existing files must be read first; set allowCreate to create a new file"
}
func (t *WriteFileTool) Mutating() bool { return true }

func (t *WriteFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file, relative to the workspace root",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Full new content of the file",
			},
			"allowCreate": map[string]interface{}{
				"type":        "boolean",
				"description": "Set true to create the file when it does not exist",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(_ context.Context, args map[string]interface{}) *Result {
	path := argString(args, "path")
	if path == "" {
		return ErrorResult("path is required")
	}
	content, hasContent := args["content"].(string)
	if !hasContent {
		return ErrorResult("content is required")
	}

	resolved, err := t.ws.Resolve(path)
	if err != nil {
		return ErrorResult(err.Error())
	}

	if t.ws.Exists(path) {
		if !t.sess.HasRead(resolved) {
			return ErrorResult(fmt.Sprintf("file %s exists and must be read_file first", path))
		}
	} else if !argBool(args, "allowCreate") {
		return ErrorResult(fmt.Sprintf("file %s does not exist; set allowCreate=true to create it", path))
	}

	content = SanitizeContent(content)
	if err := t.ws.WriteText(path, content); err != nil {
		return ErrorResult(fmt.Sprintf("failed to write file: %v", err))
	}

	t.sess.NoteRead(resolved)
	return MutatedResult(fmt.Sprintf("wrote %d bytes to %s", len(content), path), resolved)
}
