package subscribers

import (
	"encoding/json"
	"sync"

	"github.com/myclaw/myclaw/internal/bus"
	"github.com/myclaw/myclaw/internal/store"
)

// SessionLog persists the conversation of every live session as JSONL under
// the sessions directory. One append queue per session keeps records in
// publication order; Flush waits for every queued line.
type SessionLog struct {
	dir string

	wg     sync.WaitGroup
	mu     sync.Mutex
	queues map[string]*appendQueue
}

func NewSessionLog(dir string) *SessionLog {
	return &SessionLog{dir: dir, queues: make(map[string]*appendQueue)}
}

// Attach subscribes the log to the bus and returns the unsubscribe func.
func (s *SessionLog) Attach(b bus.Publisher) func() {
	return b.Subscribe("session_log", s.Handle)
}

// Flush blocks until every queued record has been written.
func (s *SessionLog) Flush() { s.wg.Wait() }

func (s *SessionLog) Handle(evt bus.Event) {
	switch evt.Type {
	case bus.EventStart:
		p, ok := evt.Payload.(bus.StartPayload)
		if !ok {
			return
		}
		logPath := p.LogPath
		if logPath == "" {
			logPath = store.SessionPath(s.dir, evt.SessionID)
		}
		q := s.queue(evt.SessionID, logPath)
		q.enqueue(marshalRecord(store.Record{
			Type:      store.RecordSessionStart,
			SessionID: evt.SessionID,
			At:        evt.At,
			Workspace: p.Workspace,
			Provider:  p.Provider,
			Model:     p.Model,
			LogPath:   logPath,
		}))
		// The system prompt is captured as the first message record so a
		// resumed session sees the same instructions.
		q.enqueue(marshalRecord(store.Record{
			Type:      store.RecordMessage,
			SessionID: evt.SessionID,
			At:        evt.At,
			Role:      "system",
			Content:   p.SystemPrompt,
		}))

	case bus.EventSessionResume:
		p, _ := evt.Payload.(bus.ResumePayload)
		s.queue(evt.SessionID, "").enqueue(marshalRecord(store.Record{
			Type:         store.RecordSessionResume,
			SessionID:    evt.SessionID,
			At:           evt.At,
			Workspace:    p.Workspace,
			MessageCount: p.MessageCount,
		}))

	case bus.EventMessage:
		p, ok := evt.Payload.(bus.MessagePayload)
		if !ok {
			return
		}
		rec := store.Record{
			Type:       store.RecordMessage,
			SessionID:  evt.SessionID,
			At:         evt.At,
			Role:       p.Role,
			Content:    p.Content,
			ToolCallID: p.ToolCallID,
			ToolName:   p.ToolName,
		}
		for _, tc := range p.ToolCalls {
			rec.ToolCalls = append(rec.ToolCalls, store.RecordToolCall{
				ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments,
			})
		}
		s.queue(evt.SessionID, "").enqueue(marshalRecord(rec))

	case bus.EventSummary:
		p, ok := evt.Payload.(bus.SummaryPayload)
		if !ok {
			return
		}
		s.queue(evt.SessionID, "").enqueue(marshalRecord(store.Record{
			Type:      store.RecordSummary,
			SessionID: evt.SessionID,
			At:        evt.At,
			TS:        p.TS,
			From:      p.From,
			To:        p.To,
			Content:   p.Content,
		}))

	case bus.EventSessionEnd:
		p, _ := evt.Payload.(bus.EndPayload)
		s.queue(evt.SessionID, "").enqueue(marshalRecord(store.Record{
			Type:      store.RecordSessionEnd,
			SessionID: evt.SessionID,
			At:        evt.At,
			Reason:    p.Reason,
		}))
		// Forget the queue; pending lines still drain under the WaitGroup.
		s.mu.Lock()
		delete(s.queues, evt.SessionID)
		s.mu.Unlock()
	}
}

// queue returns the session's append queue, creating it when needed. An
// empty logPath falls back to the conventional <dir>/<id>.jsonl location, so
// events arriving before start (or after a dropped queue) still land in the
// right file.
func (s *SessionLog) queue(sessionID, logPath string) *appendQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[sessionID]; ok {
		return q
	}
	if logPath == "" {
		logPath = store.SessionPath(s.dir, sessionID)
	}
	q := newAppendQueue(logPath, &s.wg)
	s.queues[sessionID] = q
	return q
}

func marshalRecord(rec store.Record) []byte {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil
	}
	return data
}
