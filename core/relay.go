package core

import (
	"context"
	"sync"
)

// RelayHandler forwards every message to its predecessor and completes once
// the predecessor, and transitively the rest of the chain, has completed.
// The root of a chain has no predecessor and completes immediately.
type RelayHandler struct {
	// Index is the position of the Actor in its chain.
	Index int

	// Predecessor is the Actor at Index-1, nil for the root.
	Predecessor Address

	// Probe, if set, is notified on every invocation.
	Probe Probe
}

// Handle implements Handler.
func (h *RelayHandler) Handle(_ Context, msg Message) *Future {
	if h.Probe != nil {
		h.Probe.Observe(h.Index)
	}
	if h.Predecessor == nil {
		return nil
	}
	return h.Predecessor.Send(msg)
}

// RunOnce sends msg to the tail of a chain and returns the relay completion.
func RunOnce(tail Address, msg Message) *Future {
	return tail.Send(msg)
}

// Relay sends msg to tail and waits until it has traversed the whole chain.
func Relay(ctx context.Context, tail Address, msg Message) error {
	return RunOnce(tail, msg).Wait(ctx)
}

// Recorder is a Probe that records observed indices in order.
type Recorder struct {
	mu      sync.Mutex
	indices []int
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Observe implements Probe.
func (r *Recorder) Observe(index int) {
	r.mu.Lock()
	r.indices = append(r.indices, index)
	r.mu.Unlock()
}

// Indices returns a copy of the recorded indices.
func (r *Recorder) Indices() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.indices))
	copy(out, r.indices)
	return out
}

// Count returns the number of recorded invocations.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.indices)
}

// Reset forgets all recorded invocations.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.indices = r.indices[:0]
	r.mu.Unlock()
}
