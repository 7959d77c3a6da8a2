package agent

import (
	"strings"

	"github.com/myclaw/myclaw/internal/bus"
)

const (
	ringCapacity   = 6
	fingerprintLen = 220
)

// ringBuffer keeps the last cap strings pushed into it.
type ringBuffer struct {
	items []string
	cap   int
}

func newRingBuffer(cap int) *ringBuffer {
	return &ringBuffer{cap: cap}
}

func (r *ringBuffer) push(s string) {
	r.items = append(r.items, s)
	if len(r.items) > r.cap {
		r.items = r.items[1:]
	}
}

func distinct(items []string) int {
	seen := make(map[string]struct{}, len(items))
	for _, s := range items {
		seen[s] = struct{}{}
	}
	return len(seen)
}

// oscillationTracker observes whether a session keeps issuing repeated
// low-novelty calls without mutating the workspace. Observation only; the
// loop never acts on it.
type oscillationTracker struct {
	calls           *ringBuffer
	outputs         *ringBuffer
	noMutationSteps int
}

func newOscillationTracker() *oscillationTracker {
	return &oscillationTracker{
		calls:   newRingBuffer(ringCapacity),
		outputs: newRingBuffer(ringCapacity),
	}
}

func (t *oscillationTracker) recordCall(signature string) {
	t.calls.push(signature)
}

func (t *oscillationTracker) recordOutput(output string) {
	t.outputs.push(fingerprint(output))
}

// fingerprint collapses whitespace and truncates, so near-identical outputs
// compare equal.
func fingerprint(s string) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	if len(collapsed) > fingerprintLen {
		collapsed = collapsed[:fingerprintLen]
	}
	return collapsed
}

// observe closes one step: updates the no-mutation streak and derives the
// repeat/novelty ratios over the ring windows.
func (t *oscillationTracker) observe(mutated bool) bus.OscillationPayload {
	if mutated {
		t.noMutationSteps = 0
	} else {
		t.noMutationSteps++
	}

	repeat := 0.0
	if n := len(t.calls.items); n > 0 {
		repeat = float64(n-distinct(t.calls.items)) / float64(n)
	}

	novelty := 1.0
	if n := len(t.outputs.items); n > 0 {
		nonempty := make([]string, 0, n)
		for _, fp := range t.outputs.items {
			if fp != "" {
				nonempty = append(nonempty, fp)
			}
		}
		novelty = float64(distinct(nonempty)) / float64(n)
	}

	return bus.OscillationPayload{
		RepeatRatio:     repeat,
		NoveltyRatio:    novelty,
		NoMutationSteps: t.noMutationSteps,
		Possible:        repeat >= 0.5 && novelty <= 0.5 && t.noMutationSteps >= 2,
	}
}
