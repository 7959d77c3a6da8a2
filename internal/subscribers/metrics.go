package subscribers

import (
	"encoding/json"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/myclaw/myclaw/internal/bus"
	"github.com/myclaw/myclaw/internal/usage"
)

// Metrics record types written to metrics/<sessionId>.jsonl.
const (
	metricStart       = "metrics_start"
	metricToolCall    = "tool_call_metric"
	metricToolResult  = "tool_result_metric"
	metricModel       = "model_metric"
	metricOscillation = "oscillation_metric"
	metricSummary     = "metrics_summary"
)

// metricsRecord is one JSONL line in a metrics file.
type metricsRecord struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId"`
	At        time.Time `json:"at"`

	Workspace  string `json:"workspace,omitempty"`
	Step       int    `json:"step,omitempty"`
	Tool       string `json:"tool,omitempty"`
	OK         *bool  `json:"ok,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	Possible   *bool  `json:"possibleOscillation,omitempty"`

	Totals *metricsTotals `json:"totals,omitempty"`
}

// metricsTotals closes a metrics file.
type metricsTotals struct {
	Turns             int   `json:"turns"`
	ToolCalls         int   `json:"toolCalls"`
	ToolErrors        int   `json:"toolErrors"`
	ModelCalls        int   `json:"modelCalls"`
	OscillationAlerts int   `json:"oscillationAlerts"`
	DurationMs        int64 `json:"durationMs"`
}

// sessionMetrics is the per-session counter state.
type sessionMetrics struct {
	workspace         string
	startedAt         time.Time
	lastEventAt       time.Time
	toolCalls         int
	toolErrors        int
	modelCalls        int
	turns             int
	oscillationAlerts int
}

// Metrics counts per-session activity, mirrors it into a JSONL metrics file,
// and rolls the totals into the SQLite usage ledger when the session ends.
// The ledger may be nil (metrics files only).
type Metrics struct {
	dir    string
	ledger *usage.Ledger

	wg     sync.WaitGroup
	mu     sync.Mutex
	state  map[string]*sessionMetrics
	queues map[string]*appendQueue
}

func NewMetrics(dir string, ledger *usage.Ledger) *Metrics {
	return &Metrics{
		dir:    dir,
		ledger: ledger,
		state:  make(map[string]*sessionMetrics),
		queues: make(map[string]*appendQueue),
	}
}

// Attach subscribes the metrics collector to the bus.
func (m *Metrics) Attach(b bus.Publisher) func() {
	return b.Subscribe("metrics", m.Handle)
}

// Flush blocks until every queued metrics record has been written.
func (m *Metrics) Flush() { m.wg.Wait() }

func (m *Metrics) Handle(evt bus.Event) {
	switch evt.Type {
	case bus.EventStart:
		p, _ := evt.Payload.(bus.StartPayload)
		st := m.track(evt.SessionID, evt.At)
		st.workspace = p.Workspace
		m.emit(evt.SessionID, metricsRecord{
			Type: metricStart, SessionID: evt.SessionID, At: evt.At, Workspace: p.Workspace,
		})

	case bus.EventSessionResume:
		p, _ := evt.Payload.(bus.ResumePayload)
		st := m.track(evt.SessionID, evt.At)
		if st.workspace == "" {
			st.workspace = p.Workspace
		}
		m.emit(evt.SessionID, metricsRecord{
			Type: metricStart, SessionID: evt.SessionID, At: evt.At, Workspace: p.Workspace,
		})

	case bus.EventToolCall:
		p, _ := evt.Payload.(bus.ToolCallPayload)
		st := m.track(evt.SessionID, evt.At)
		st.toolCalls++
		m.emit(evt.SessionID, metricsRecord{
			Type: metricToolCall, SessionID: evt.SessionID, At: evt.At,
			Step: p.Step, Tool: p.Tool,
		})

	case bus.EventToolResult:
		p, ok := evt.Payload.(bus.ToolResultPayload)
		if !ok {
			return
		}
		st := m.track(evt.SessionID, evt.At)
		if !p.OK {
			st.toolErrors++
		}
		okVal := p.OK
		m.emit(evt.SessionID, metricsRecord{
			Type: metricToolResult, SessionID: evt.SessionID, At: evt.At,
			Step: p.Step, Tool: p.Tool, OK: &okVal, DurationMs: p.DurationMs,
		})

	case bus.EventModelResponse:
		p, _ := evt.Payload.(bus.ModelResponsePayload)
		st := m.track(evt.SessionID, evt.At)
		st.modelCalls++
		m.emit(evt.SessionID, metricsRecord{
			Type: metricModel, SessionID: evt.SessionID, At: evt.At,
			Step: p.Step, DurationMs: p.DurationMs,
		})

	case bus.EventOscillation:
		p, ok := evt.Payload.(bus.OscillationPayload)
		if !ok {
			return
		}
		st := m.track(evt.SessionID, evt.At)
		if p.Possible {
			st.oscillationAlerts++
		}
		possible := p.Possible
		m.emit(evt.SessionID, metricsRecord{
			Type: metricOscillation, SessionID: evt.SessionID, At: evt.At, Possible: &possible,
		})

	case bus.EventFinal, bus.EventMaxSteps:
		st := m.track(evt.SessionID, evt.At)
		st.turns++

	case bus.EventSessionEnd:
		m.mu.Lock()
		st := m.state[evt.SessionID]
		delete(m.state, evt.SessionID)
		q := m.queues[evt.SessionID]
		delete(m.queues, evt.SessionID)
		m.mu.Unlock()
		if st == nil {
			return
		}

		totals := &metricsTotals{
			Turns:             st.turns,
			ToolCalls:         st.toolCalls,
			ToolErrors:        st.toolErrors,
			ModelCalls:        st.modelCalls,
			OscillationAlerts: st.oscillationAlerts,
			DurationMs:        evt.At.Sub(st.startedAt).Milliseconds(),
		}
		if q != nil {
			q.enqueue(marshalMetrics(metricsRecord{
				Type: metricSummary, SessionID: evt.SessionID, At: evt.At, Totals: totals,
			}))
		}
		m.upsertLedger(evt.SessionID, st, evt.At)

	default:
		// message/summary/context_trim only bump the activity clock.
		m.track(evt.SessionID, evt.At)
	}
}

// track returns the per-session counters, creating them on first sight, and
// advances the activity clock.
func (m *Metrics) track(sessionID string, at time.Time) *sessionMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.state[sessionID]
	if !ok {
		st = &sessionMetrics{startedAt: at}
		m.state[sessionID] = st
	}
	st.lastEventAt = at
	return st
}

func (m *Metrics) emit(sessionID string, rec metricsRecord) {
	m.mu.Lock()
	q, ok := m.queues[sessionID]
	if !ok {
		q = newAppendQueue(filepath.Join(m.dir, sessionID+".jsonl"), &m.wg)
		m.queues[sessionID] = q
	}
	m.mu.Unlock()
	q.enqueue(marshalMetrics(rec))
}

func (m *Metrics) upsertLedger(sessionID string, st *sessionMetrics, endedAt time.Time) {
	if m.ledger == nil {
		return
	}
	err := m.ledger.Upsert(usage.Row{
		SessionID:         sessionID,
		Workspace:         st.workspace,
		StartedAt:         st.startedAt,
		EndedAt:           endedAt,
		Turns:             st.turns,
		ToolCalls:         st.toolCalls,
		ToolErrors:        st.toolErrors,
		ModelCalls:        st.modelCalls,
		OscillationAlerts: st.oscillationAlerts,
	})
	if err != nil {
		slog.Warn("usage ledger update failed", "session", sessionID, "error", err)
	}
}

func marshalMetrics(rec metricsRecord) []byte {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil
	}
	return data
}
