package agent

import (
	"fmt"
	"sync"
)

// Tracker enforces at most one in-flight invocation per agent name.
type Tracker struct {
	mu     sync.Mutex
	active map[string]*Session
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]*Session)}
}

// Acquire reserves the session's agent. The returned release function is
// idempotent and only frees the reservation held by s.
func (t *Tracker) Acquire(s *Session) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	name := s.Agent.Name
	if cur, ok := t.active[name]; ok && cur != s {
		return nil, fmt.Errorf("%w: %s (session %s is %s)", ErrAgentBusy, name, cur.ID, cur.State())
	}
	t.active[name] = s

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if t.active[name] == s {
				delete(t.active, name)
			}
		})
	}, nil
}

// Active returns the in-flight session for an agent, if any.
func (t *Tracker) Active(name string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.active[name]
	return s, ok
}
