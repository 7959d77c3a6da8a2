package agent

import (
	"fmt"
	"os"
	"strings"
)

// SystemPromptConfig carries what the prompt builder needs to know about the
// session being created.
type SystemPromptConfig struct {
	Workspace  string
	Model      string
	MemoryFile string // optional; appended when present and non-empty
}

// BuildSystemPrompt renders the session's system message: identity, workspace
// grounding, tool ground rules, and the user's durable memory file.
func BuildSystemPrompt(cfg SystemPromptConfig) string {
	var b strings.Builder

	b.WriteString("You are myclaw, a coding agent that works inside a sandboxed workspace using tools.\n\n")
	fmt.Fprintf(&b, "Workspace: %s\n", cfg.Workspace)
	if cfg.Model != "" {
		fmt.Fprintf(&b, "Model: %s\n", cfg.Model)
	}

	b.WriteString(`
Ground rules:
- Inspect the workspace with the tools before changing anything; never guess file contents.
- read_file a file before you write_file or apply_patch it.
- At most one mutation (write_file or apply_patch) per response; read-only tools may batch.
- write_file on a path that does not exist yet needs allowCreate=true.
- All paths are relative to the workspace root; you cannot leave it.
- run_shell output starts with "exit_code=N", then the combined stdout/stderr.
- When the task is done, reply with plain text and no tool calls.
`)

	if cfg.MemoryFile != "" {
		if content, err := os.ReadFile(cfg.MemoryFile); err == nil {
			if trimmed := strings.TrimSpace(string(content)); trimmed != "" {
				b.WriteString("\nMemory:\n")
				b.WriteString(trimmed)
				b.WriteString("\n")
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
