package session

import (
	"log/slog"
	"sync"
	"time"
)

// entry binds a transcript to its pending expiry timer.
//
// gen guards against the stale-timer race: AppendTurn bumps gen under the
// store mutex before arming a new timer, so a previously scheduled callback
// that fires late sees a mismatched generation and does nothing.
type entry struct {
	history *History
	timer   *time.Timer
	gen     uint64
}

// Store maps session ids to transcripts and owns their expiry timers.
//
// Store is safe for concurrent use. The map mutex is held only for map and
// timer manipulation; transcript reads and writes go through the History's
// own lock, so long generations on one session never block others.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*entry
	logger   *slog.Logger
	closed   bool
}

// New creates a Store with the given inactivity window.
// ttl must be positive (validated by config before the service starts).
func New(ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		ttl:      ttl,
		sessions: make(map[string]*entry),
		logger:   logger,
	}
}

// GetOrCreate returns the transcript for id, creating an empty one on first
// use. Creation alone does not arm an expiry timer; only completed turns do.
func (s *Store) GetOrCreate(id string) *History {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		e = &entry{history: NewHistory()}
		s.sessions[id] = e
		s.logger.Debug("created session", "session_id", id)
	}
	return e.history
}

// AppendTurn appends turns to the session's transcript and restarts its
// expiry timer. Stopping the old timer, bumping the generation and arming
// the new timer all happen under the store mutex, so a concurrent expiry
// cannot remove a transcript that was just extended.
func (s *Store) AppendTurn(id string, turns ...Turn) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		e = &entry{history: NewHistory()}
		s.sessions[id] = e
	}

	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	if !s.closed {
		e.timer = time.AfterFunc(s.ttl, func() { s.expire(id, gen) })
	}
	s.mu.Unlock()

	e.history.Add(turns...)
	s.logger.Debug("appended turns", "session_id", id, "count", len(turns))
}

// Expire removes the session's transcript immediately. Idempotent: expiring
// an absent id is a no-op.
func (s *Store) Expire(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(id)
}

// expire is the timer callback. It only removes the session when the
// generation still matches; a reset that raced the timer wins.
func (s *Store) expire(id string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || e.gen != gen {
		return
	}
	s.remove(id)
	s.logger.Debug("session expired", "session_id", id)
}

// remove deletes the entry and stops its timer. Caller holds s.mu.
func (s *Store) remove(id string) {
	e, ok := s.sessions[id]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.sessions, id)
}

// Has reports whether a live session exists for id.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops all timers and drops all sessions. The store must not be used
// after Close; it is called once on service shutdown.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id := range s.sessions {
		s.remove(id)
	}
}
