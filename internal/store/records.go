// Package store reads and writes the per-session JSONL logs under
// <home>/sessions/. One record per line, append-only; replaying a log
// reconstructs the session. Malformed lines are skipped so a torn write
// cannot poison resumption.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Record types found in session logs.
const (
	RecordSessionStart  = "session_start"
	RecordSessionResume = "session_resume"
	RecordSessionEnd    = "session_end"
	RecordMessage       = "message"
	RecordSummary       = "summary"
)

// RecordToolCall persists a provider tool-call descriptor attached to an
// assistant message.
type RecordToolCall struct {
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// Record is one JSONL line. The populated fields depend on Type; zero values
// are omitted on disk and read back as zero.
type Record struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	At        time.Time `json:"at"`

	// session_start
	Workspace string `json:"workspace,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	LogPath   string `json:"logPath,omitempty"`

	// session_resume
	MessageCount int `json:"messageCount,omitempty"`

	// session_end
	Reason string `json:"reason,omitempty"`

	// message
	Role       string           `json:"role,omitempty"`
	Content    string           `json:"content,omitempty"`
	ToolCallID string           `json:"toolCallId,omitempty"`
	ToolName   string           `json:"toolName,omitempty"`
	ToolCalls  []RecordToolCall `json:"toolCalls,omitempty"`

	// summary
	TS   time.Time `json:"ts,omitempty"`
	From int       `json:"from,omitempty"`
	To   int       `json:"to,omitempty"`
}

// AppendRecord writes one record as a JSONL line, creating parent
// directories on first use.
func AppendRecord(path string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}
