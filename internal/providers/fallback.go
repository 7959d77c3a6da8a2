package providers

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FallbackResponse shapes a terminal provider failure into a safe textual
// reply so the turn loop can close cleanly instead of handling an error.
func FallbackResponse(err error) *ChatResponse {
	return &ChatResponse{
		Content: fmt.Sprintf("The model request failed after all retries (%v). Please try again.", err),
	}
}

// fallbackCall is the only inline tool-call shape the parser accepts.
type fallbackCall struct {
	Type  string                 `json:"type"`
	Tool  string                 `json:"tool"`
	Input map[string]interface{} `json:"input"`
}

// ParseFallbackToolCall recovers a tool call from assistant text when the
// provider returned no structured calls. It tries a fenced ```json block
// first, then every balanced top-level JSON object in order; candidates that
// are not {"type":"tool_call","tool":...,"input":{...}} are silently skipped.
func ParseFallbackToolCall(text string) (*ToolCall, bool) {
	if call, ok := parseCandidate(fencedJSON(text)); ok {
		return call, true
	}
	for _, candidate := range balancedObjects(text) {
		if call, ok := parseCandidate(candidate); ok {
			return call, true
		}
	}
	return nil, false
}

func parseCandidate(candidate string) (*ToolCall, bool) {
	if candidate == "" {
		return nil, false
	}
	var fc fallbackCall
	if err := json.Unmarshal([]byte(candidate), &fc); err != nil {
		return nil, false
	}
	if fc.Type != "tool_call" || fc.Tool == "" {
		return nil, false
	}
	if fc.Input == nil {
		fc.Input = make(map[string]interface{})
	}
	return &ToolCall{Name: fc.Tool, Arguments: fc.Input}, true
}

// fencedJSON extracts the body of the first ```json fence, if any.
func fencedJSON(text string) string {
	start := strings.Index(text, "```json")
	if start < 0 {
		return ""
	}
	rest := text[start+len("```json"):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// balancedObjects returns every top-level {...} span in text, tracking string
// literals and escapes so braces inside quoted values do not miscount.
func balancedObjects(text string) []string {
	var spans []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					spans = append(spans, text[start:i+1])
					start = -1
				}
			}
		}
	}
	return spans
}
