// Package usage keeps the durable per-session usage ledger in a SQLite
// database under the myclaw home directory. The metrics subscriber upserts a
// row when a session ends; doctor reads the aggregates back. All writes are
// best-effort from the caller's point of view.
package usage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_usage (
	session_id         TEXT PRIMARY KEY,
	workspace          TEXT NOT NULL DEFAULT '',
	started_at         TEXT NOT NULL DEFAULT '',
	ended_at           TEXT NOT NULL DEFAULT '',
	turns              INTEGER NOT NULL DEFAULT 0,
	tool_calls         INTEGER NOT NULL DEFAULT 0,
	tool_errors        INTEGER NOT NULL DEFAULT 0,
	model_calls        INTEGER NOT NULL DEFAULT 0,
	oscillation_alerts INTEGER NOT NULL DEFAULT 0
);
`

// Row is one session's usage totals.
type Row struct {
	SessionID         string
	Workspace         string
	StartedAt         time.Time
	EndedAt           time.Time
	Turns             int
	ToolCalls         int
	ToolErrors        int
	ModelCalls        int
	OscillationAlerts int
}

// Totals aggregates the whole ledger.
type Totals struct {
	Sessions          int
	Turns             int
	ToolCalls         int
	ToolErrors        int
	ModelCalls        int
	OscillationAlerts int
}

// Ledger wraps the SQLite handle.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path and ensures the
// schema exists.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("usage ledger: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("usage ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("usage ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error { return l.db.Close() }

// Upsert writes (or overwrites) one session's totals.
func (l *Ledger) Upsert(row Row) error {
	_, err := l.db.Exec(`
INSERT INTO session_usage
	(session_id, workspace, started_at, ended_at, turns, tool_calls, tool_errors, model_calls, oscillation_alerts)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
	workspace = excluded.workspace,
	started_at = excluded.started_at,
	ended_at = excluded.ended_at,
	turns = excluded.turns,
	tool_calls = excluded.tool_calls,
	tool_errors = excluded.tool_errors,
	model_calls = excluded.model_calls,
	oscillation_alerts = excluded.oscillation_alerts`,
		row.SessionID, row.Workspace,
		formatTime(row.StartedAt), formatTime(row.EndedAt),
		row.Turns, row.ToolCalls, row.ToolErrors, row.ModelCalls, row.OscillationAlerts,
	)
	if err != nil {
		return fmt.Errorf("usage upsert %s: %w", row.SessionID, err)
	}
	return nil
}

// Totals sums every row in the ledger.
func (l *Ledger) Totals() (Totals, error) {
	var t Totals
	err := l.db.QueryRow(`
SELECT COUNT(*),
	COALESCE(SUM(turns), 0),
	COALESCE(SUM(tool_calls), 0),
	COALESCE(SUM(tool_errors), 0),
	COALESCE(SUM(model_calls), 0),
	COALESCE(SUM(oscillation_alerts), 0)
FROM session_usage`).Scan(
		&t.Sessions, &t.Turns, &t.ToolCalls, &t.ToolErrors, &t.ModelCalls, &t.OscillationAlerts,
	)
	if err != nil {
		return Totals{}, fmt.Errorf("usage totals: %w", err)
	}
	return t, nil
}

// Recent returns up to n rows, most recently ended first.
func (l *Ledger) Recent(n int) ([]Row, error) {
	rows, err := l.db.Query(`
SELECT session_id, workspace, started_at, ended_at, turns, tool_calls, tool_errors, model_calls, oscillation_alerts
FROM session_usage
ORDER BY ended_at DESC
LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("usage recent: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var started, ended string
		if err := rows.Scan(&r.SessionID, &r.Workspace, &started, &ended,
			&r.Turns, &r.ToolCalls, &r.ToolErrors, &r.ModelCalls, &r.OscillationAlerts); err != nil {
			return nil, fmt.Errorf("usage recent: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.EndedAt = parseTime(ended)
		out = append(out, r)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
