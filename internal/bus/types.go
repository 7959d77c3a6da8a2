package bus

import "time"

// Event type constants. Every runtime boundary publishes one of these.
const (
	EventStart             = "start"
	EventSessionResume     = "session_resume"
	EventSessionEnd        = "session_end"
	EventMessage           = "message"
	EventSummary           = "summary"
	EventContextTrim       = "context_trim"
	EventModelRequestStart = "model_request_start"
	EventModelResponse     = "model_response"
	EventToolCall          = "tool_call"
	EventToolResult        = "tool_result"
	EventOscillation       = "oscillation_observe"
	EventFinal             = "final"
	EventMaxSteps          = "max_steps"
)

// Event is the tagged union broadcast to subscribers. Payload holds the
// *Payload struct matching Type; consumers switch on Type.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId"`
	At        time.Time `json:"at"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent stamps an event with the current UTC time.
func NewEvent(eventType, sessionID string, payload any) Event {
	return Event{Type: eventType, SessionID: sessionID, At: time.Now().UTC(), Payload: payload}
}

// ToolCallRef mirrors a provider-issued tool call for replay and persistence.
type ToolCallRef struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// StartPayload introduces a new session.
type StartPayload struct {
	Workspace    string `json:"workspace"`
	LogPath      string `json:"logPath"`
	Provider     string `json:"provider"`
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

// ResumePayload announces a session reloaded from its JSONL log.
type ResumePayload struct {
	Workspace    string `json:"workspace"`
	MessageCount int    `json:"messageCount"`
}

// EndPayload closes a session.
type EndPayload struct {
	Reason string `json:"reason,omitempty"`
}

// MessagePayload carries one appended session message.
type MessagePayload struct {
	Role       string        `json:"role"`
	Content    string        `json:"content"`
	ToolCallID string        `json:"toolCallId,omitempty"`
	ToolName   string        `json:"toolName,omitempty"`
	ToolCalls  []ToolCallRef `json:"toolCalls,omitempty"`
}

// SummaryPayload carries one compression summary block.
type SummaryPayload struct {
	TS      time.Time `json:"ts"`
	From    int       `json:"from"`
	To      int       `json:"to"`
	Content string    `json:"content"`
}

// ContextTrimPayload reports leading tool-role messages dropped from a model
// request window.
type ContextTrimPayload struct {
	Dropped int `json:"dropped"`
}

// ModelRequestPayload marks the start of a model call.
type ModelRequestPayload struct {
	Step         int `json:"step"`
	MessageCount int `json:"messageCount"`
}

// ModelResponsePayload reports a completed model call.
type ModelResponsePayload struct {
	Step       int   `json:"step"`
	DurationMs int64 `json:"durationMs"`
	ToolCalls  int   `json:"toolCalls"`
	TextLen    int   `json:"textLen"`
}

// ToolCallPayload marks a tool about to execute.
type ToolCallPayload struct {
	Step      int            `json:"step"`
	Tool      string         `json:"tool"`
	CallID    string         `json:"callId,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResultPayload reports a finished (or rejected) tool execution. Path is
// the resolved target for mutation tools so check subscribers can act on it.
type ToolResultPayload struct {
	Step       int    `json:"step"`
	Tool       string `json:"tool"`
	CallID     string `json:"callId,omitempty"`
	OK         bool   `json:"ok"`
	Output     string `json:"output,omitempty"`
	Path       string `json:"path,omitempty"`
	Mutation   bool   `json:"mutation,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// OscillationPayload carries the per-step oscillation observation.
type OscillationPayload struct {
	RepeatRatio     float64 `json:"repeatRatio"`
	NoveltyRatio    float64 `json:"noveltyRatio"`
	NoMutationSteps int     `json:"noMutationSteps"`
	Possible        bool    `json:"possibleOscillation"`
}

// FinalPayload carries the assistant's closing text for a turn.
type FinalPayload struct {
	Content string `json:"content"`
	Steps   int    `json:"steps"`
}

// MaxStepsPayload reports a turn stopped by the step budget.
type MaxStepsPayload struct {
	Steps int `json:"steps"`
}

// Handler consumes one event. Handlers must not assume exclusive access to
// the payload.
type Handler func(Event)

// Publisher abstracts subscription + publication so consumers can be tested
// against a bare Bus.
type Publisher interface {
	Subscribe(id string, handler Handler) (unsubscribe func())
	Unsubscribe(id string)
	Publish(event Event)
}
