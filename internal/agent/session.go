package agent

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// State is the lifecycle position of one invocation.
type State int32

const (
	StateIdle State = iota
	StateHandling
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandling:
		return "handling"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// StateObserver is notified after every successful transition.
type StateObserver func(s *Session, from, to State)

// Session is the state of a single agent invocation. It moves
// Idle → Handling → Finished exactly once and is never reused.
type Session struct {
	ID    string
	Agent AgentConfig

	state    atomic.Int32
	claimed  atomic.Bool
	observer StateObserver
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithStateObserver registers fn to run after each transition.
func WithStateObserver(fn StateObserver) SessionOption {
	return func(s *Session) { s.observer = fn }
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.ID = id
		}
	}
}

// NewSession creates an Idle session for agent.
func NewSession(agent AgentConfig, opts ...SessionOption) *Session {
	s := &Session{
		ID:    "inv_" + strings.ReplaceAll(uuid.New().String()[:8], "-", ""),
		Agent: agent,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Begin moves the session from Idle to Handling.
func (s *Session) Begin() error {
	return s.transition(StateIdle, StateHandling)
}

// Finish moves the session from Handling to Finished.
func (s *Session) Finish() error {
	return s.transition(StateHandling, StateFinished)
}

func (s *Session) transition(from, to State) error {
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("%w: %s -> %s (current %s)", ErrInvalidTransition, from, to, s.State())
	}
	if s.observer != nil {
		s.observer(s, from, to)
	}
	return nil
}

// claim marks the session as owned by a dispatcher. Only the first caller wins.
func (s *Session) claim() bool {
	return s.claimed.CompareAndSwap(false, true)
}
