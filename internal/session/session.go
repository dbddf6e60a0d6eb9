// Package session runs the voice pipeline and owns per-session state.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionBusy is returned when a session is asked to process a second
// utterance while one is still in flight. Calls are rejected, never
// queued.
var ErrSessionBusy = errors.New("session already processing an utterance")

// Session binds one user's interactions together. At most one utterance
// is processed at a time per session; independent sessions run fully in
// parallel.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu   sync.Mutex
	busy bool
}

// NewSession creates a session with a fresh id.
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
}

// tryAcquire marks the session busy. Returns false when a pipeline run
// is already in flight.
func (s *Session) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Busy reports whether the session is currently processing.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}
