// Package session keeps per-session conversation transcripts in memory with
// sliding inactivity expiry.
//
// The store is process-local and never persisted: a restart drops all
// transcripts. Sessions are independent; only operations on the same id
// contend.
package session

import (
	"sync"
)

// Role constants for transcript turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance in a conversation transcript.
type Turn struct {
	Role string
	Text string
}

// History is a mutex-guarded ordered transcript.
//
// The zero value is not useful; use NewHistory.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{turns: make([]Turn, 0)}
}

// Add appends turns in order.
func (h *History) Add(turns ...Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turns...)
}

// Turns returns a copy of the transcript for thread-safe iteration.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Count returns the number of turns.
func (h *History) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}
