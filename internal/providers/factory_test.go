package providers

import (
	"context"
	"errors"
	"testing"
)

// --- factory tests ---

// TestFactorySelection verifies provider construction and the key rules:
// openai tolerates a missing key only with a custom base URL, anthropic
// never does.
func TestFactorySelection(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		wantName string
		wantErr  error
	}{
		{
			name:     "mock needs nothing",
			opts:     Options{Provider: "mock"},
			wantName: "mock",
		},
		{
			name:    "openai without key or base url",
			opts:    Options{Provider: "openai"},
			wantErr: ErrMissingAPIKey,
		},
		{
			name:     "openai keyless against local gateway",
			opts:     Options{Provider: "openai", BaseURL: "http://localhost:8080/v1"},
			wantName: "openai",
		},
		{
			name:     "openai with key",
			opts:     Options{Provider: "openai", OpenAIKey: "sk-x"},
			wantName: "openai",
		},
		{
			name:    "anthropic without key",
			opts:    Options{Provider: "anthropic", BaseURL: "http://localhost:9090"},
			wantErr: ErrMissingAPIKey,
		},
		{
			name:     "anthropic with key",
			opts:     Options{Provider: "anthropic", AnthropicKey: "ak-x", Model: "claude-test"},
			wantName: "anthropic",
		},
		{
			name:    "unknown provider",
			opts:    Options{Provider: "carrier-pigeon"},
			wantErr: errors.New("unknown provider"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.opts)
			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("New() succeeded, want error like %v", tt.wantErr)
				}
				if errors.Is(tt.wantErr, ErrMissingAPIKey) && !errors.Is(err, ErrMissingAPIKey) {
					t.Errorf("err = %v, want ErrMissingAPIKey", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(): %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

// TestFactoryAppliesModel verifies the configured model becomes the default.
func TestFactoryAppliesModel(t *testing.T) {
	p, err := New(Options{Provider: "openai", OpenAIKey: "sk-x", Model: "gpt-custom"})
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	if p.DefaultModel() != "gpt-custom" {
		t.Errorf("DefaultModel = %q, want gpt-custom", p.DefaultModel())
	}
}

// --- mock tests ---

// TestMockProviderEchoesLastUser verifies the deterministic echo contract.
func TestMockProviderEchoesLastUser(t *testing.T) {
	p := NewMockProvider()
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "sys"},
			{Role: "user", Content: "first"},
			{Role: "assistant", Content: "mid"},
			{Role: "user", Content: "second"},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "mock: second" {
		t.Errorf("Content = %q, want %q", resp.Content, "mock: second")
	}
	if len(resp.ToolCalls) != 0 {
		t.Errorf("ToolCalls = %v, want none", resp.ToolCalls)
	}
}

// TestScriptedProviderReplaysInOrder verifies scripted responses come back
// in sequence and the overflow reply is a plain final answer.
func TestScriptedProviderReplaysInOrder(t *testing.T) {
	p := NewScriptedProvider(
		&ChatResponse{Content: "one"},
		&ChatResponse{ToolCalls: []ToolCall{{Name: "list_files", Arguments: map[string]interface{}{"path": "."}}}},
	)

	r1, _ := p.Chat(context.Background(), ChatRequest{})
	if r1.Content != "one" {
		t.Errorf("first = %+v", r1)
	}
	r2, _ := p.Chat(context.Background(), ChatRequest{})
	if len(r2.ToolCalls) != 1 || r2.ToolCalls[0].Name != "list_files" {
		t.Errorf("second = %+v", r2)
	}
	r3, _ := p.Chat(context.Background(), ChatRequest{})
	if r3.Content == "" || len(r3.ToolCalls) != 0 {
		t.Errorf("overflow = %+v, want plain text", r3)
	}
	if len(p.Requests) != 3 {
		t.Errorf("recorded requests = %d, want 3", len(p.Requests))
	}
}
