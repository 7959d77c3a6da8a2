package agent

import (
	"fmt"
	"strings"
	"testing"

	"github.com/myclaw/myclaw/internal/providers"
	"github.com/myclaw/myclaw/internal/sessions"
)

// TestCompressFoldsUntilUnderTrigger folds 20-message chunks until the
// uncompressed tail fits under the trigger, leaving contiguous blocks.
func TestCompressFoldsUntilUnderTrigger(t *testing.T) {
	eng := NewEngine(EngineConfig{})
	sess := sessions.New("c1", nil, "/ws", "", "sys", sessions.Settings{MaxSteps: 8, ContextWindowSize: 20})
	for i := 0; i < 85; i++ {
		sess.Append(providers.Message{Role: "user", Content: fmt.Sprintf("message %d", i)})
	}

	eng.compress(sess)

	if len(sess.Summaries) != 3 {
		t.Fatalf("blocks = %d, want 3", len(sess.Summaries))
	}
	if sess.CompressedCount != 60 {
		t.Errorf("compressedCount = %d, want 60", sess.CompressedCount)
	}
	for i, block := range sess.Summaries {
		wantFrom := i * 20
		if block.From != wantFrom || block.To != wantFrom+19 {
			t.Errorf("block[%d] bounds = [%d-%d], want [%d-%d]", i, block.From, block.To, wantFrom, wantFrom+19)
		}
	}

	// Another pass with nothing over the trigger is a no-op.
	eng.compress(sess)
	if len(sess.Summaries) != 3 {
		t.Errorf("idempotent pass added blocks: %d", len(sess.Summaries))
	}
}

// TestCompressBelowTriggerIsNoop leaves short conversations alone.
func TestCompressBelowTriggerIsNoop(t *testing.T) {
	eng := NewEngine(EngineConfig{})
	sess := sessions.New("c2", nil, "/ws", "", "sys", sessions.Settings{MaxSteps: 8, ContextWindowSize: 20})
	for i := 0; i < 40; i++ {
		sess.Append(providers.Message{Role: "user", Content: "short"})
	}

	eng.compress(sess)

	if len(sess.Summaries) != 0 || sess.CompressedCount != 0 {
		t.Errorf("summaries = %d compressedCount = %d, want none", len(sess.Summaries), sess.CompressedCount)
	}
}

// TestSummarizeChunkSelectsTail keeps the last three user intents, the last
// three assistant actions, and the last five tool results.
func TestSummarizeChunkSelectsTail(t *testing.T) {
	var msgs []providers.Message
	for i := 0; i < 6; i++ {
		msgs = append(msgs, providers.Message{Role: "user", Content: fmt.Sprintf("user intent %d", i)})
		msgs = append(msgs, providers.Message{Role: "assistant", Content: fmt.Sprintf("assistant action %d", i)})
		msgs = append(msgs, providers.Message{Role: "tool", Content: fmt.Sprintf("tool output %d", i)})
	}

	got := summarizeChunk(msgs)

	for _, want := range []string{"user intent 3", "user intent 5", "assistant action 4", "tool output 1", "tool output 5"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
	for _, stale := range []string{"user intent 2", "assistant action 1", "tool output 0"} {
		if strings.Contains(got, stale) {
			t.Errorf("summary carries %q beyond its tail window:\n%s", stale, got)
		}
	}
}

// TestSummarizeChunkDescribesToolOnlyAssistant names the called tools when an
// assistant message has no text.
func TestSummarizeChunkDescribesToolOnlyAssistant(t *testing.T) {
	got := summarizeChunk([]providers.Message{
		{Role: "assistant", ToolCalls: []providers.ToolCall{
			{Name: "read_file"}, {Name: "list_files"},
		}},
	})
	if !strings.Contains(got, "called read_file, list_files") {
		t.Errorf("summary = %q, want the tool names", got)
	}
}

// TestOneLineTruncates collapses whitespace and bounds line length.
func TestOneLineTruncates(t *testing.T) {
	long := strings.Repeat("word ", 100)
	got := oneLine(long)
	if strings.Contains(got, "\n") {
		t.Error("oneLine kept a newline")
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("long line not truncated: %q", got)
	}

	if got := oneLine("a\n  b\tc"); got != "a b c" {
		t.Errorf("oneLine(%q) = %q, want collapsed", "a\n  b\tc", got)
	}
}
