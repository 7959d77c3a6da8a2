// Package providers implements the LLM provider contract: a single Chat
// operation over an OpenAI-compatible or Anthropic HTTP API, plus a mock for
// offline runs. Transient failures are retried with jittered backoff and a
// terminal failure degrades to a safe textual reply instead of an error, so
// the turn loop never has to handle provider exceptions mid-step.
package providers

import "context"

// Provider is the interface all LLM providers implement.
type Provider interface {
	// Chat sends the conversation and tool schemas to the model and returns
	// its reply. Transient transport failures are handled internally; an
	// error return is reserved for context cancellation.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// DefaultModel returns the provider's default model name.
	DefaultModel() string

	// Name returns the provider identifier (e.g. "openai", "mock").
	Name() string
}

// ChatRequest contains the input for a Chat call.
type ChatRequest struct {
	Messages []Message        `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
	Model    string           `json:"model,omitempty"`
}

// ChatResponse is the result from an LLM call.
type ChatResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     *Usage     `json:"usage,omitempty"`
}

// Message represents a conversation message. Assistant messages that carried
// tool calls keep them so history replays verbatim and tool-role messages are
// never orphaned on the wire.
type Message struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // for role="tool" responses
	ToolName   string     `json:"tool_name,omitempty"`    // for role="tool" responses
}

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolDefinition describes a tool available to the LLM.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function ToolFunctionSchema `json:"function"`
}

// ToolFunctionSchema is the schema for a function tool.
type ToolFunctionSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// EmptyResponseSentinel is returned when a successful attempt yields neither
// text nor tool calls. The engine rewrites it into a completion notice.
const EmptyResponseSentinel = "Model returned an empty response."
