package usage

import (
	"path/filepath"
	"testing"
	"time"
)

// TestLedgerUpsertAndTotals verifies that upserting twice for the same
// session keeps a single row and that totals aggregate across sessions.
func TestLedgerUpsertAndTotals(t *testing.T) {
	ledger, err := Open(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ledger.Close()

	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	row := Row{
		SessionID: "s-1", Workspace: "/tmp/ws",
		StartedAt: start, EndedAt: start.Add(time.Minute),
		Turns: 2, ToolCalls: 5, ToolErrors: 1, ModelCalls: 7, OscillationAlerts: 1,
	}
	if err := ledger.Upsert(row); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Re-upsert with grown counters; still one row.
	row.Turns, row.ToolCalls = 3, 9
	if err := ledger.Upsert(row); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if err := ledger.Upsert(Row{SessionID: "s-2", Turns: 1, ModelCalls: 1, EndedAt: start.Add(2 * time.Minute)}); err != nil {
		t.Fatalf("second session: %v", err)
	}

	totals, err := ledger.Totals()
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Sessions != 2 {
		t.Errorf("Sessions = %d, want 2", totals.Sessions)
	}
	if totals.Turns != 4 {
		t.Errorf("Turns = %d, want 4", totals.Turns)
	}
	if totals.ToolCalls != 9 {
		t.Errorf("ToolCalls = %d, want 9", totals.ToolCalls)
	}
	if totals.ModelCalls != 8 {
		t.Errorf("ModelCalls = %d, want 8", totals.ModelCalls)
	}
}

// TestLedgerRecent verifies ordering by end time, newest first.
func TestLedgerRecent(t *testing.T) {
	ledger, err := Open(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ledger.Close()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		err := ledger.Upsert(Row{SessionID: id, EndedAt: base.Add(time.Duration(i) * time.Hour)})
		if err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	rows, err := ledger.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].SessionID != "new" || rows[1].SessionID != "mid" {
		t.Errorf("order = [%s %s], want [new mid]", rows[0].SessionID, rows[1].SessionID)
	}
	if !rows[0].EndedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("EndedAt = %v, want %v", rows[0].EndedAt, base.Add(2*time.Hour))
	}
}
