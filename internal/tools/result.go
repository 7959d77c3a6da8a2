package tools

// Result is the unified return type from tool execution.
type Result struct {
	Output   string `json:"output"`             // content fed back to the LLM
	OK       bool   `json:"ok"`                 // false marks a rejected or failed call
	Mutation bool   `json:"-"`                  // a successful workspace mutation happened
	Path     string `json:"-"`                  // canonical path touched, for events and checks
}

func NewResult(output string) *Result {
	return &Result{Output: output, OK: true}
}

func ErrorResult(message string) *Result {
	return &Result{Output: message}
}

// MutatedResult marks a successful mutation of path.
func MutatedResult(output, path string) *Result {
	return &Result{Output: output, OK: true, Mutation: true, Path: path}
}
