package tools

import (
	"context"
	"fmt"

	"github.com/myclaw/myclaw/internal/providers"
	"github.com/myclaw/myclaw/internal/sessions"
	"github.com/myclaw/myclaw/internal/workspace"
)

// Registry holds the tool catalog in registration order.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

func (r *Registry) Register(t Tool) {
	if _, ok := r.tools[t.Name()]; !ok {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Definitions renders the catalog as provider tool schemas, in registration
// order.
func (r *Registry) Definitions() []providers.ToolDefinition {
	defs := make([]providers.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, providers.ToolDefinition{
			Type: "function",
			Function: providers.ToolFunctionSchema{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Execute runs the named tool. Unknown names and tool panics come back as
// ok=false results so a bad call never takes down the turn loop.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (res *Result) {
	t, ok := r.tools[name]
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool: %s", name))
	}
	defer func() {
		if rec := recover(); rec != nil {
			res = ErrorResult(fmt.Sprintf("tool %s panicked: %v", name, rec))
		}
	}()
	if args == nil {
		args = map[string]interface{}{}
	}
	return t.Execute(ctx, args)
}

// Catalog wires the standard six tools against one workspace and session.
func Catalog(ws *workspace.Workspace, sess *sessions.Session, approve ApprovalFunc) *Registry {
	return NewRegistry(
		NewReadFileTool(ws, sess),
		NewWriteFileTool(ws, sess),
		NewApplyPatchTool(ws, sess),
		NewListFilesTool(ws),
		NewSearchWorkspaceTool(ws),
		NewRunShellTool(ws, approve),
	)
}
