package agent

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/myclaw/myclaw/internal/bus"
	"github.com/myclaw/myclaw/internal/providers"
	"github.com/myclaw/myclaw/internal/sessions"
)

const (
	compressionTrigger = 40
	compressionChunk   = 20
	summaryLineLen     = 180
)

// compress folds the oldest uncompressed messages into summary blocks until
// the uncompressed tail fits under the trigger. Deterministic, no model call.
func (e *Engine) compress(sess *sessions.Session) {
	for len(sess.Messages)-sess.CompressedCount > compressionTrigger {
		from := sess.CompressedCount
		to := from + compressionChunk - 1
		block := sessions.SummaryBlock{
			TS:      time.Now().UTC(),
			From:    from,
			To:      to,
			Content: summarizeChunk(sess.Messages[from : to+1]),
		}
		sess.AppendSummary(block)
		e.publish(bus.EventSummary, sess.ID, bus.SummaryPayload{
			TS: block.TS, From: block.From, To: block.To, Content: block.Content,
		})
	}
}

// summarizeChunk renders a chunk as plain text: the last three user intents,
// the last three assistant actions, the last five tool results, each
// one-lined and truncated.
func summarizeChunk(msgs []providers.Message) string {
	var users, assistants, toolResults []string
	for _, m := range msgs {
		switch m.Role {
		case "user":
			users = append(users, "user: "+oneLine(m.Content))
		case "assistant":
			assistants = append(assistants, "assistant: "+oneLine(assistantAction(m)))
		case "tool":
			toolResults = append(toolResults, "tool: "+oneLine(m.Content))
		}
	}

	var parts []string
	parts = append(parts, lastN(users, 3)...)
	parts = append(parts, lastN(assistants, 3)...)
	parts = append(parts, lastN(toolResults, 5)...)
	if len(parts) == 0 {
		return "(no conversational content)"
	}
	return strings.Join(parts, "\n")
}

// assistantAction describes what the assistant did: its text, or the tools it
// called when it produced none.
func assistantAction(m providers.Message) string {
	if strings.TrimSpace(m.Content) != "" {
		return m.Content
	}
	if len(m.ToolCalls) == 0 {
		return "(empty)"
	}
	names := make([]string, len(m.ToolCalls))
	for i, tc := range m.ToolCalls {
		names[i] = tc.Name
	}
	return "called " + strings.Join(names, ", ")
}

func lastN(items []string, n int) []string {
	if len(items) > n {
		return items[len(items)-n:]
	}
	return items
}

// oneLine collapses whitespace and truncates to the summary line budget.
func oneLine(s string) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(collapsed) <= summaryLineLen {
		return collapsed
	}
	return string([]rune(collapsed)[:summaryLineLen]) + "…"
}
