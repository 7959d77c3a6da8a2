// Package sessions holds live agent sessions: the append-only conversation,
// summary blocks from compression, the read-path set backing the
// read-before-write rail, and the interrupt queue that feeds background check
// failures into the next turn. The store owns sessions exclusively; everything
// else refers to them by id.
package sessions

import (
	"time"

	"github.com/myclaw/myclaw/internal/providers"
)

// SummaryBlock covers a contiguous span of compressed messages. From and To
// are inclusive indices into the non-system message list.
type SummaryBlock struct {
	TS      time.Time `json:"ts"`
	From    int       `json:"from"`
	To      int       `json:"to"`
	Content string    `json:"content"`
}

// Settings carries the per-session runtime knobs resolved from configuration.
type Settings struct {
	Model             string
	MaxSteps          int
	ContextWindowSize int
}

// Session is the unit of conversation state. Exactly one turn may execute on
// a session at a time; under that discipline no internal locking is needed.
type Session struct {
	ID           string
	Workspace    string // canonical absolute path
	LogPath      string
	Provider     providers.Provider
	Model        string
	SystemPrompt string

	MaxSteps          int
	ContextWindowSize int

	// Messages holds the non-system conversation, append-only. The system
	// prompt lives apart so compression and window indices stay simple.
	Messages        []providers.Message
	Summaries       []SummaryBlock
	CompressedCount int

	// WorkspaceVersion increments on every successful mutation; the
	// exploration set is scoped to the current version.
	WorkspaceVersion int

	Interrupts *InterruptQueue[providers.Message]

	StartedAt time.Time
	UpdatedAt time.Time

	readPaths   map[string]struct{}
	exploration map[string]struct{}
}

func New(id string, provider providers.Provider, workspace, logPath, systemPrompt string, st Settings) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:                id,
		Workspace:         workspace,
		LogPath:           logPath,
		Provider:          provider,
		Model:             st.Model,
		SystemPrompt:      systemPrompt,
		MaxSteps:          st.MaxSteps,
		ContextWindowSize: st.ContextWindowSize,
		Interrupts:        NewInterruptQueue[providers.Message](),
		StartedAt:         now,
		UpdatedAt:         now,
		readPaths:         make(map[string]struct{}),
		exploration:       make(map[string]struct{}),
	}
}

// Append adds a message to the conversation. Messages are never rewritten.
func (s *Session) Append(msg providers.Message) {
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now().UTC()
}

// AppendSummary records a compression block. Blocks are contiguous: each
// starts where the previous one ended.
func (s *Session) AppendSummary(block SummaryBlock) {
	s.Summaries = append(s.Summaries, block)
	if block.To+1 > s.CompressedCount {
		s.CompressedCount = block.To + 1
	}
}

// NoteRead records that this session observed a canonical path via read_file
// (or created it), unlocking mutations on that path.
func (s *Session) NoteRead(canonicalPath string) {
	s.readPaths[canonicalPath] = struct{}{}
}

// HasRead reports whether the canonical path was observed in this session.
func (s *Session) HasRead(canonicalPath string) bool {
	_, ok := s.readPaths[canonicalPath]
	return ok
}

// MarkMutation bumps the workspace version and resets the per-version
// exploration set after a successful write_file or apply_patch.
func (s *Session) MarkMutation() {
	s.WorkspaceVersion++
	s.exploration = make(map[string]struct{})
}

// NoteExploration records an exploration-call signature for the current
// workspace version and reports whether it was already present.
func (s *Session) NoteExploration(signature string) bool {
	if _, ok := s.exploration[signature]; ok {
		return true
	}
	s.exploration[signature] = struct{}{}
	return false
}
