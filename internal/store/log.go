package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/myclaw/myclaw/internal/providers"
	"github.com/myclaw/myclaw/internal/sessions"
)

// PersistedSessionSummary describes one on-disk session, derived by replay.
type PersistedSessionSummary struct {
	SessionID     string    `json:"sessionId"`
	Workspace     string    `json:"workspace"`
	StartedAt     time.Time `json:"startedAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	MessageCount  int       `json:"messageCount"`
	LogPath       string    `json:"logPath"`
}

// LoadedSession is a session reconstructed from its JSONL log, ready to be
// re-entered into the store.
type LoadedSession struct {
	SessionID       string
	Workspace       string
	Provider        string
	Model           string
	SystemPrompt    string
	Messages        []providers.Message
	Summaries       []sessions.SummaryBlock
	CompressedCount int
	LogPath         string
}

// SessionPath maps a session id to its log file under dir.
func SessionPath(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+".jsonl")
}

// ListForWorkspace enumerates sessions/<id>.jsonl under dir, keeps those that
// match workspace (or recorded no workspace at all), and sorts them by
// lastUpdatedAt, falling back to startedAt, newest first.
func ListForWorkspace(dir, workspace string) ([]PersistedSessionSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var out []PersistedSessionSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		summary, err := replaySummary(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if summary.Workspace != "" && workspace != "" && summary.Workspace != workspace {
			continue
		}
		out = append(out, *summary)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return sortKey(out[i]).After(sortKey(out[j]))
	})
	return out, nil
}

func sortKey(s PersistedSessionSummary) time.Time {
	if !s.LastUpdatedAt.IsZero() {
		return s.LastUpdatedAt
	}
	return s.StartedAt
}

// replaySummary scans one log and derives its session summary.
func replaySummary(path string) (*PersistedSessionSummary, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty log %s", path)
	}

	summary := &PersistedSessionSummary{
		SessionID: strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		LogPath:   path,
	}
	for _, rec := range records {
		switch rec.Type {
		case RecordSessionStart:
			if rec.SessionID != "" {
				summary.SessionID = rec.SessionID
			}
			summary.Workspace = rec.Workspace
			summary.StartedAt = rec.At
		case RecordSessionResume:
			if rec.Workspace != "" {
				summary.Workspace = rec.Workspace
			}
		case RecordMessage:
			summary.MessageCount++
		}
		if !rec.At.IsZero() {
			summary.LastUpdatedAt = rec.At
		}
	}
	return summary, nil
}

// Load replays a session log into a LoadedSession: the message list with
// tool-call identity preserved, summary blocks, and a compressedCount derived
// from the highest block bound. A log that never captured a system message
// leaves SystemPrompt empty for the caller to inject.
func Load(dir, sessionID string) (*LoadedSession, error) {
	path := SessionPath(dir, sessionID)
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("session %s has no readable records", sessionID)
	}

	loaded := &LoadedSession{SessionID: sessionID, LogPath: path}
	for _, rec := range records {
		switch rec.Type {
		case RecordSessionStart:
			loaded.Workspace = rec.Workspace
			loaded.Provider = rec.Provider
			loaded.Model = rec.Model

		case RecordMessage:
			if rec.Role == "" {
				continue // replay corruption: keep going
			}
			if rec.Role == "system" {
				if loaded.SystemPrompt == "" {
					loaded.SystemPrompt = rec.Content
				}
				continue
			}
			msg := providers.Message{
				Role:       rec.Role,
				Content:    rec.Content,
				ToolCallID: rec.ToolCallID,
				ToolName:   rec.ToolName,
			}
			for _, tc := range rec.ToolCalls {
				if tc.Name == "" {
					continue
				}
				msg.ToolCalls = append(msg.ToolCalls, providers.ToolCall{
					ID:        tc.ID,
					Name:      tc.Name,
					Arguments: tc.Arguments,
				})
			}
			loaded.Messages = append(loaded.Messages, msg)

		case RecordSummary:
			loaded.Summaries = append(loaded.Summaries, sessions.SummaryBlock{
				TS:      rec.TS,
				From:    rec.From,
				To:      rec.To,
				Content: rec.Content,
			})
			if rec.To+1 > loaded.CompressedCount {
				loaded.CompressedCount = rec.To + 1
			}
		}
	}
	return loaded, nil
}

// PickSession resolves a user-facing specifier against a sorted summary list:
// "latest", a 1-based index, or a session id.
func PickSession(summaries []PersistedSessionSummary, specifier string) (*PersistedSessionSummary, error) {
	if len(summaries) == 0 {
		return nil, fmt.Errorf("no persisted sessions")
	}
	if specifier == "" || specifier == "latest" {
		return &summaries[0], nil
	}
	if idx, err := strconv.Atoi(specifier); err == nil {
		if idx < 1 || idx > len(summaries) {
			return nil, fmt.Errorf("session index %d out of range 1..%d", idx, len(summaries))
		}
		return &summaries[idx-1], nil
	}
	for i := range summaries {
		if summaries[i].SessionID == specifier {
			return &summaries[i], nil
		}
	}
	return nil, fmt.Errorf("session %s not found", specifier)
}

// readRecords parses a JSONL log, skipping malformed lines.
func readRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session log %s not found", path)
		}
		return nil, fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if rec.Type == "" {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, nil // keep what parsed; trailing corruption is survivable
	}
	return records, nil
}
