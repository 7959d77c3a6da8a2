// Package tools implements the agent's fixed tool catalog: read_file,
// write_file, apply_patch, list_files, search_workspace, run_shell. The
// mutation tools enforce the session safety rails (read-before-write and the
// create guard); run_shell routes destructive commands through the
// sensitive-action approval callback. Every failure is returned as an
// ok=false result, never as an error, so the turn loop always gets something
// to feed back to the model.
package tools

import "context"

// Tool is one catalog entry.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}

	// Mutating marks write_file/apply_patch, the tools subject to the
	// single-mutation-per-step rule and the workspace version bump.
	Mutating() bool

	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// argString pulls a string argument, tolerating absence.
func argString(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

// argBool pulls a bool argument, coercing the string forms models sometimes
// produce ("true"/"false").
func argBool(args map[string]interface{}, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	default:
		return false
	}
}
