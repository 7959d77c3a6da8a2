// Package subscribers implements the production event-bus consumers: the
// session log and metrics JSONL writers, the async check gate, and the
// user-profile learner. Subscribers keep per-session state keyed by session
// id and drop it on session_end; none of them may let an error escape into
// the bus.
package subscribers

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// appendQueue serializes JSONL appends to one file. Lines are applied in
// enqueue order by a single consumer goroutine, so records for a session
// never interleave. Writes are best-effort: an I/O failure is logged and the
// line dropped.
type appendQueue struct {
	path string
	wg   *sync.WaitGroup // owned by the subscriber; counts queued lines

	mu   sync.Mutex
	jobs [][]byte
	busy bool
}

func newAppendQueue(path string, wg *sync.WaitGroup) *appendQueue {
	return &appendQueue{path: path, wg: wg}
}

// enqueue hands one line to the queue and returns immediately.
func (q *appendQueue) enqueue(line []byte) {
	if line == nil {
		return
	}
	q.wg.Add(1)
	q.mu.Lock()
	q.jobs = append(q.jobs, line)
	if !q.busy {
		q.busy = true
		go q.drain()
	}
	q.mu.Unlock()
}

// drain applies queued lines until the queue is empty, then exits. enqueue
// restarts it on the next line.
func (q *appendQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.busy = false
			q.mu.Unlock()
			return
		}
		batch := q.jobs
		q.jobs = nil
		q.mu.Unlock()

		q.write(batch)
		for range batch {
			q.wg.Done()
		}
	}
}

func (q *appendQueue) write(batch [][]byte) {
	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		slog.Warn("subscriber write skipped", "path", q.path, "error", err)
		return
	}
	f, err := os.OpenFile(q.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.Warn("subscriber write skipped", "path", q.path, "error", err)
		return
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, line := range batch {
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		slog.Warn("subscriber write failed", "path", q.path, "error", err)
	}
}
