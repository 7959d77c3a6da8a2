package providers

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is an offline provider that echoes the last user message. It
// keeps the full loop runnable without network access or credentials.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string         { return "mock" }
func (p *MockProvider) DefaultModel() string { return "mock-echo" }

func (p *MockProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	last := ""
	for _, m := range req.Messages {
		if m.Role == "user" {
			last = m.Content
		}
	}
	return &ChatResponse{Content: fmt.Sprintf("mock: %s", last)}, nil
}

// ScriptedProvider replays a fixed list of responses in order; subsequent
// calls return an empty final answer. Used by tests to drive the engine
// through deterministic tool-call sequences.
type ScriptedProvider struct {
	mu        sync.Mutex
	responses []*ChatResponse
	next      int

	// Requests records every ChatRequest received, for assertions.
	Requests []ChatRequest
}

func NewScriptedProvider(responses ...*ChatResponse) *ScriptedProvider {
	return &ScriptedProvider{responses: responses}
}

func (p *ScriptedProvider) Name() string         { return "scripted" }
func (p *ScriptedProvider) DefaultModel() string { return "scripted" }

func (p *ScriptedProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)
	if p.next >= len(p.responses) {
		return &ChatResponse{Content: "done"}, nil
	}
	resp := p.responses[p.next]
	p.next++
	return resp, nil
}
