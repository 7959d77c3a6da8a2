package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/myclaw/myclaw/internal/bus"
	"github.com/myclaw/myclaw/internal/providers"
	"github.com/myclaw/myclaw/internal/sessions"
	"github.com/myclaw/myclaw/internal/tools"
)

// toolResultBody is the JSON carried by a TOOL_RESULT message.
type toolResultBody struct {
	Tool   string `json:"tool"`
	OK     bool   `json:"ok"`
	Output string `json:"output"`
}

// callSignature identifies one call within a workspace version. Go map
// marshalling sorts keys, so equal inputs produce equal signatures.
func callSignature(version int, tool string, input map[string]interface{}) string {
	encoded, err := json.Marshal(input)
	if err != nil {
		encoded = []byte(fmt.Sprintf("%v", input))
	}
	return fmt.Sprintf("%d:%s:%s", version, tool, encoded)
}

// isLowValueExploration marks the calls subject to duplicate suppression:
// pure lookups whose repetition cannot yield new information while the
// workspace is unchanged.
func isLowValueExploration(tc providers.ToolCall) bool {
	switch tc.Name {
	case "list_files", "search_workspace":
		return true
	case "run_shell":
		cmd, _ := tc.Arguments["command"].(string)
		cmd = strings.TrimSpace(cmd)
		return strings.HasPrefix(cmd, "ls") || cmd == "pwd"
	}
	return false
}

// mutationCount counts calls that target mutation tools.
func mutationCount(reg *tools.Registry, calls []providers.ToolCall) int {
	count := 0
	for _, tc := range calls {
		if t, ok := reg.Get(tc.Name); ok && t.Mutating() {
			count++
		}
	}
	return count
}

// firstMutationCall returns the first call targeting a mutation tool. Callers
// check mutationCount first.
func firstMutationCall(reg *tools.Registry, calls []providers.ToolCall) providers.ToolCall {
	for _, tc := range calls {
		if t, ok := reg.Get(tc.Name); ok && t.Mutating() {
			return tc
		}
	}
	return calls[0]
}

// dispatchCalls runs one step's parsed tool calls in order and reports
// whether any of them mutated the workspace.
func (e *Engine) dispatchCalls(ctx context.Context, sess *sessions.Session, reg *tools.Registry, tracker *oscillationTracker, step int, calls []providers.ToolCall) bool {
	mutated := false
	for _, tc := range calls {
		sig := callSignature(sess.WorkspaceVersion, tc.Name, tc.Arguments)
		tracker.recordCall(sig)

		if isLowValueExploration(tc) && sess.NoteExploration(sig) {
			output := fmt.Sprintf("Skipped duplicate %s call: the workspace is unchanged since the identical call. Use the earlier result or try a different query.", tc.Name)
			e.appendToolResult(sess, tc, false, output)
			tracker.recordOutput(output)
			continue
		}

		e.publish(bus.EventToolCall, sess.ID, bus.ToolCallPayload{
			Step: step, Tool: tc.Name, CallID: tc.ID, Arguments: tc.Arguments,
		})

		toolCtx, span := e.tracer.StartTool(ctx, tc.Name, step)
		start := time.Now()
		res := reg.Execute(toolCtx, tc.Name, tc.Arguments)
		if !res.OK {
			e.tracer.RecordError(span, errors.New(truncate(res.Output, 200)))
			slog.Warn("tool error", "session", sess.ID, "tool", tc.Name, "error", truncate(res.Output, 200))
		}
		span.End()

		if res.Mutation {
			sess.MarkMutation()
			mutated = true
		}

		e.publish(bus.EventToolResult, sess.ID, bus.ToolResultPayload{
			Step:       step,
			Tool:       tc.Name,
			CallID:     tc.ID,
			OK:         res.OK,
			Output:     truncate(res.Output, 500),
			Path:       res.Path,
			Mutation:   res.Mutation,
			DurationMs: time.Since(start).Milliseconds(),
		})

		e.appendToolResult(sess, tc, res.OK, res.Output)
		tracker.recordOutput(res.Output)
	}
	return mutated
}

// appendToolResult appends the tool-role feedback message for tc. The content
// is the fixed "TOOL_RESULT {json}" shape the model is prompted against.
func (e *Engine) appendToolResult(sess *sessions.Session, tc providers.ToolCall, ok bool, output string) {
	body, _ := json.Marshal(toolResultBody{Tool: tc.Name, OK: ok, Output: output})
	e.appendMessage(sess, providers.Message{
		Role:       "tool",
		Content:    "TOOL_RESULT " + string(body),
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
