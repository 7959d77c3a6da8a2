package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/myclaw/myclaw/internal/providers"
	"github.com/myclaw/myclaw/internal/sessions"
)

func sessionWithMessages(windowSize int, msgs ...providers.Message) *sessions.Session {
	sess := sessions.New("ctx", nil, "/ws", "", "system prompt", sessions.Settings{
		MaxSteps: 8, ContextWindowSize: windowSize,
	})
	sess.Messages = msgs
	return sess
}

// TestBuildContextSlidingWindow sends the system prompt plus the newest
// windowSize messages.
func TestBuildContextSlidingWindow(t *testing.T) {
	sess := sessionWithMessages(4,
		providers.Message{Role: "user", Content: "m0"},
		providers.Message{Role: "assistant", Content: "m1"},
		providers.Message{Role: "user", Content: "m2"},
		providers.Message{Role: "assistant", Content: "m3"},
		providers.Message{Role: "user", Content: "m4"},
		providers.Message{Role: "assistant", Content: "m5"},
	)

	msgs, dropped := buildContext(sess)
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
	if len(msgs) != 5 {
		t.Fatalf("context size = %d, want system + 4", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "system prompt" {
		t.Errorf("context[0] = %+v, want the system prompt", msgs[0])
	}
	if msgs[1].Content != "m2" || msgs[4].Content != "m5" {
		t.Errorf("window = %q..%q, want m2..m5", msgs[1].Content, msgs[4].Content)
	}
}

// TestBuildContextStripsLeadingToolResults drops tool messages at the window
// head whose prompting assistant fell outside it.
func TestBuildContextStripsLeadingToolResults(t *testing.T) {
	sess := sessionWithMessages(3,
		providers.Message{Role: "assistant", ToolCalls: []providers.ToolCall{{ID: "x", Name: "read_file"}}},
		providers.Message{Role: "tool", Content: "TOOL_RESULT a", ToolCallID: "x"},
		providers.Message{Role: "tool", Content: "TOOL_RESULT b", ToolCallID: "y"},
		providers.Message{Role: "user", Content: "next"},
	)

	msgs, dropped := buildContext(sess)
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if len(msgs) != 2 {
		t.Fatalf("context size = %d, want system + survivor", len(msgs))
	}
	if msgs[1].Role != "user" {
		t.Errorf("first window message role = %q, want user", msgs[1].Role)
	}
}

// TestBuildContextStartsAfterCompression keeps compressed messages out of the
// window even when it has room for them.
func TestBuildContextStartsAfterCompression(t *testing.T) {
	msgs := make([]providers.Message, 12)
	for i := range msgs {
		msgs[i] = providers.Message{Role: "user", Content: strings.Repeat("x", i+1)}
	}
	sess := sessionWithMessages(20, msgs...)
	sess.AppendSummary(sessions.SummaryBlock{TS: time.Now(), From: 0, To: 9, Content: "first ten"})

	got, dropped := buildContext(sess)
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
	// system + summary block + messages 10..11
	if len(got) != 4 {
		t.Fatalf("context size = %d, want 4", len(got))
	}
	if !strings.Contains(got[1].Content, "first ten") {
		t.Errorf("context[1] = %q, want the summary block", got[1].Content)
	}
	if got[2].Content != strings.Repeat("x", 11) {
		t.Errorf("window starts at %q, want message 10", got[2].Content)
	}
}

// TestBuildContextSummaryTail renders at most the newest three summary
// blocks.
func TestBuildContextSummaryTail(t *testing.T) {
	sess := sessionWithMessages(20, providers.Message{Role: "user", Content: "tail"})
	for i := 0; i < 5; i++ {
		sess.AppendSummary(sessions.SummaryBlock{
			From: i * 10, To: i*10 + 9, Content: "block" + string(rune('A'+i)),
		})
	}
	sess.CompressedCount = 0 // keep the lone message in the window

	got, _ := buildContext(sess)
	rendered := got[1].Content
	for _, want := range []string{"blockC", "blockD", "blockE"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("summary render missing %s: %q", want, rendered)
		}
	}
	for _, stale := range []string{"blockA", "blockB"} {
		if strings.Contains(rendered, stale) {
			t.Errorf("summary render carries stale %s: %q", stale, rendered)
		}
	}
}
