// Package agent implements the turn engine: context assembly, sliding-window
// compression, tool dispatch behind the safety rails, oscillation
// observation, and the session lifecycle (create, resume, run, close).
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/myclaw/myclaw/internal/bus"
	"github.com/myclaw/myclaw/internal/config"
	"github.com/myclaw/myclaw/internal/observability"
	"github.com/myclaw/myclaw/internal/providers"
	"github.com/myclaw/myclaw/internal/sessions"
	"github.com/myclaw/myclaw/internal/store"
	"github.com/myclaw/myclaw/internal/tools"
	"github.com/myclaw/myclaw/internal/workspace"
)

const (
	batchRejectedMessage = "Batch rejected: at most one mutation tool call (write_file or apply_patch) is allowed per response. Re-send the mutations one at a time."
	maxStepsMessage      = "Stopped: the step limit for this turn was reached before the task finished. Send a follow-up message to continue."
	emptyResponseNotice  = "No further output from the model; the task appears complete."
)

// EngineConfig wires the engine's collaborators. Bus and Tracer may be nil;
// Approve nil means every destructive command is denied.
type EngineConfig struct {
	Config  *config.Config
	Bus     bus.Publisher
	Store   *sessions.Manager
	Approve tools.ApprovalFunc
	Tracer  *observability.Tracer
}

// Engine drives agent turns. At most one turn runs on a session at a time;
// turns on different sessions are independent.
type Engine struct {
	cfg     *config.Config
	bus     bus.Publisher
	store   *sessions.Manager
	approve tools.ApprovalFunc
	tracer  *observability.Tracer

	mu         sync.Mutex
	registries map[string]*tools.Registry
	trackers   map[string]*oscillationTracker
}

func NewEngine(ec EngineConfig) *Engine {
	return &Engine{
		cfg:        ec.Config,
		bus:        ec.Bus,
		store:      ec.Store,
		approve:    ec.Approve,
		tracer:     ec.Tracer,
		registries: make(map[string]*tools.Registry),
		trackers:   make(map[string]*oscillationTracker),
	}
}

// TurnResult is the outcome of one Run call.
type TurnResult struct {
	Content string
	Steps   int
	Usage   providers.Usage
}

// CreateSession builds the provider from configuration, canonicalizes the
// workspace, and registers a fresh session. Provider misconfiguration (such
// as a missing API key) surfaces here, before any turn starts.
func (e *Engine) CreateSession(ctx context.Context, workspacePath string) (*sessions.Session, error) {
	provider, err := e.newProvider()
	if err != nil {
		return nil, err
	}

	ws, err := workspace.New(workspacePath)
	if err != nil {
		return nil, fmt.Errorf("workspace %s: %w", workspacePath, err)
	}

	id := uuid.NewString()
	logPath := store.SessionPath(e.cfg.SessionsDir(), id)
	model := e.cfg.Model
	if model == "" {
		model = provider.DefaultModel()
	}
	systemPrompt := BuildSystemPrompt(SystemPromptConfig{
		Workspace:  ws.Root(),
		Model:      model,
		MemoryFile: e.cfg.MemoryPath(),
	})

	sess := sessions.New(id, provider, ws.Root(), logPath, systemPrompt, sessions.Settings{
		Model:             model,
		MaxSteps:          e.cfg.Runtime.MaxSteps,
		ContextWindowSize: e.cfg.Runtime.ContextWindowSize,
	})
	e.store.Add(sess)
	e.attach(sess, ws)

	e.publish(bus.EventStart, sess.ID, bus.StartPayload{
		Workspace:    ws.Root(),
		LogPath:      logPath,
		Provider:     provider.Name(),
		Model:        model,
		SystemPrompt: systemPrompt,
	})
	slog.Info("session created", "session", id, "workspace", ws.Root(), "provider", provider.Name())
	return sess, nil
}

// Resume reloads a persisted session from its JSONL log and registers it.
func (e *Engine) Resume(ctx context.Context, sessionID string) (*sessions.Session, error) {
	loaded, err := store.Load(e.cfg.SessionsDir(), sessionID)
	if err != nil {
		return nil, err
	}

	provider, err := e.newProvider()
	if err != nil {
		return nil, err
	}

	wsPath := loaded.Workspace
	if wsPath == "" {
		wsPath = e.cfg.WorkspacePath()
	}
	ws, err := workspace.New(wsPath)
	if err != nil {
		return nil, fmt.Errorf("workspace %s: %w", wsPath, err)
	}

	model := e.cfg.Model
	if model == "" {
		model = provider.DefaultModel()
	}
	systemPrompt := loaded.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = BuildSystemPrompt(SystemPromptConfig{
			Workspace:  ws.Root(),
			Model:      model,
			MemoryFile: e.cfg.MemoryPath(),
		})
	}
	logPath := loaded.LogPath
	if logPath == "" {
		logPath = store.SessionPath(e.cfg.SessionsDir(), loaded.SessionID)
	}

	sess := sessions.New(loaded.SessionID, provider, ws.Root(), logPath, systemPrompt, sessions.Settings{
		Model:             model,
		MaxSteps:          e.cfg.Runtime.MaxSteps,
		ContextWindowSize: e.cfg.Runtime.ContextWindowSize,
	})
	sess.Messages = loaded.Messages
	sess.Summaries = loaded.Summaries
	sess.CompressedCount = loaded.CompressedCount
	e.store.Add(sess)
	e.attach(sess, ws)

	e.publish(bus.EventSessionResume, sess.ID, bus.ResumePayload{
		Workspace:    ws.Root(),
		MessageCount: len(sess.Messages),
	})
	slog.Info("session resumed", "session", sess.ID, "messages", len(sess.Messages))
	return sess, nil
}

// Run executes one turn: soft-gate feedback, the user message, then up to
// MaxSteps model↔tool iterations. The returned error is reserved for context
// cancellation and store lookups; model and tool failures feed back into the
// loop as messages.
func (e *Engine) Run(ctx context.Context, sessionID, userText string) (*TurnResult, error) {
	sess, err := e.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	reg := e.registries[sessionID]
	tracker := e.trackers[sessionID]
	e.mu.Unlock()
	if reg == nil || tracker == nil {
		return nil, fmt.Errorf("session %s is not attached to this engine", sessionID)
	}

	ctx, turnSpan := e.tracer.StartTurn(ctx, sessionID)
	defer turnSpan.End()

	// Check failures from the previous turn land before the new input.
	for _, interrupt := range sess.Interrupts.Drain() {
		e.appendMessage(sess, interrupt)
	}

	e.appendMessage(sess, providers.Message{Role: "user", Content: userText})
	e.compress(sess)

	var usage providers.Usage
	steps := 0
	for steps < sess.MaxSteps {
		steps++

		// Checks that settled mid-turn reach the very next model request.
		for _, interrupt := range sess.Interrupts.Drain() {
			e.appendMessage(sess, interrupt)
		}

		msgs, droppedLeading := buildContext(sess)
		if droppedLeading > 0 {
			e.publish(bus.EventContextTrim, sess.ID, bus.ContextTrimPayload{Dropped: droppedLeading})
		}

		e.publish(bus.EventModelRequestStart, sess.ID, bus.ModelRequestPayload{
			Step: steps, MessageCount: len(msgs),
		})
		slog.Debug("model request", "session", sess.ID, "step", steps, "messages", len(msgs))

		modelCtx, modelSpan := e.tracer.StartModelCall(ctx, sess.Provider.Name(), sess.Model, steps)
		start := time.Now()
		resp, err := sess.Provider.Chat(modelCtx, providers.ChatRequest{
			Messages: msgs,
			Tools:    reg.Definitions(),
			Model:    sess.Model,
		})
		if err != nil {
			e.tracer.RecordError(modelSpan, err)
			modelSpan.End()
			return nil, fmt.Errorf("model request (step %d): %w", steps, err)
		}
		modelSpan.End()

		if resp.Usage != nil {
			usage.PromptTokens += resp.Usage.PromptTokens
			usage.CompletionTokens += resp.Usage.CompletionTokens
			usage.TotalTokens += resp.Usage.TotalTokens
		}

		toolCalls := resp.ToolCalls
		if len(toolCalls) == 0 {
			if tc, ok := providers.ParseFallbackToolCall(resp.Content); ok {
				if tc.ID == "" {
					tc.ID = "call-" + uuid.NewString()[:8]
				}
				toolCalls = []providers.ToolCall{*tc}
			}
		}

		e.publish(bus.EventModelResponse, sess.ID, bus.ModelResponsePayload{
			Step:       steps,
			DurationMs: time.Since(start).Milliseconds(),
			ToolCalls:  len(toolCalls),
			TextLen:    len(resp.Content),
		})

		if len(toolCalls) == 0 {
			final := resp.Content
			if final == providers.EmptyResponseSentinel {
				final = emptyResponseNotice
			}
			e.appendMessage(sess, providers.Message{Role: "assistant", Content: final})
			e.publish(bus.EventFinal, sess.ID, bus.FinalPayload{Content: final, Steps: steps})
			return &TurnResult{Content: final, Steps: steps, Usage: usage}, nil
		}

		e.appendMessage(sess, providers.Message{
			Role: "assistant", Content: resp.Content, ToolCalls: toolCalls,
		})

		if mutationCount(reg, toolCalls) > 1 {
			tc := firstMutationCall(reg, toolCalls)
			e.appendToolResult(sess, tc, false, batchRejectedMessage)
			slog.Warn("mutation batch rejected", "session", sess.ID, "step", steps, "calls", len(toolCalls))
			continue
		}

		stepMutated := e.dispatchCalls(ctx, sess, reg, tracker, steps, toolCalls)
		e.publish(bus.EventOscillation, sess.ID, tracker.observe(stepMutated))
	}

	e.appendMessage(sess, providers.Message{Role: "assistant", Content: maxStepsMessage})
	e.publish(bus.EventMaxSteps, sess.ID, bus.MaxStepsPayload{Steps: steps})
	return &TurnResult{Content: maxStepsMessage, Steps: steps, Usage: usage}, nil
}

// CloseSession publishes session_end and forgets the session. The JSONL log
// remains on disk for resumption.
func (e *Engine) CloseSession(sessionID, reason string) {
	e.publish(bus.EventSessionEnd, sessionID, bus.EndPayload{Reason: reason})
	e.store.Delete(sessionID)
	e.mu.Lock()
	delete(e.registries, sessionID)
	delete(e.trackers, sessionID)
	e.mu.Unlock()
}

// ListPersisted returns the persisted sessions for a workspace, newest first.
func (e *Engine) ListPersisted(workspacePath string) ([]store.PersistedSessionSummary, error) {
	return store.ListForWorkspace(e.cfg.SessionsDir(), workspacePath)
}

func (e *Engine) newProvider() (providers.Provider, error) {
	return providers.New(providers.Options{
		Provider:          e.cfg.Provider,
		Model:             e.cfg.Model,
		BaseURL:           e.cfg.BaseURL,
		OpenAIKey:         e.cfg.OpenAIKey,
		AnthropicKey:      e.cfg.AnthropicKey,
		ModelTimeoutMs:    e.cfg.Runtime.ModelTimeoutMs,
		ModelRetryCount:   e.cfg.Runtime.ModelRetryCount,
		RequestsPerMinute: e.cfg.Runtime.RequestsPerMinute,
	})
}

// attach builds the per-session tool registry and oscillation tracker.
func (e *Engine) attach(sess *sessions.Session, ws *workspace.Workspace) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registries[sess.ID] = tools.Catalog(ws, sess, e.approve)
	e.trackers[sess.ID] = newOscillationTracker()
}

func (e *Engine) publish(eventType, sessionID string, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(bus.NewEvent(eventType, sessionID, payload))
}

// appendMessage appends to the session and mirrors the message onto the bus
// so the log subscriber persists it.
func (e *Engine) appendMessage(sess *sessions.Session, msg providers.Message) {
	sess.Append(msg)
	e.publish(bus.EventMessage, sess.ID, bus.MessagePayload{
		Role:       msg.Role,
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
		ToolName:   msg.ToolName,
		ToolCalls:  toRefs(msg.ToolCalls),
	})
}

func toRefs(calls []providers.ToolCall) []bus.ToolCallRef {
	if len(calls) == 0 {
		return nil
	}
	refs := make([]bus.ToolCallRef, len(calls))
	for i, tc := range calls {
		refs[i] = bus.ToolCallRef{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
	}
	return refs
}
