package agent

import (
	"fmt"
	"strings"

	"github.com/myclaw/myclaw/internal/providers"
	"github.com/myclaw/myclaw/internal/sessions"
)

const maxSummaryBlocksInContext = 3

// buildContext assembles the model-visible messages: the system prompt, a
// tail of summary blocks as a second system message, then the sliding window
// over the non-system conversation. Returns the messages and how many leading
// tool-role messages were stripped because their prompting assistant fell
// outside the window.
func buildContext(sess *sessions.Session) ([]providers.Message, int) {
	msgs := make([]providers.Message, 0, sess.ContextWindowSize+2)
	msgs = append(msgs, providers.Message{Role: "system", Content: sess.SystemPrompt})

	if len(sess.Summaries) > 0 {
		msgs = append(msgs, providers.Message{Role: "system", Content: renderSummaries(sess.Summaries)})
	}

	start := sess.CompressedCount
	if w := sess.ContextWindowSize; w > 0 && len(sess.Messages)-w > start {
		start = len(sess.Messages) - w
	}
	window := sess.Messages[start:]

	dropped := 0
	for len(window) > 0 && window[0].Role == "tool" {
		window = window[1:]
		dropped++
	}

	msgs = append(msgs, window...)
	return msgs, dropped
}

// renderSummaries formats the newest summary blocks for the model.
func renderSummaries(blocks []sessions.SummaryBlock) string {
	tail := blocks
	if len(tail) > maxSummaryBlocksInContext {
		tail = tail[len(tail)-maxSummaryBlocksInContext:]
	}
	var b strings.Builder
	b.WriteString("Compressed memory blocks:\n")
	for _, blk := range tail {
		fmt.Fprintf(&b, "[%d-%d] %s\n\n", blk.From, blk.To, blk.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
