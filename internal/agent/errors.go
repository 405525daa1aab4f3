package agent

import "errors"

var (
	// ErrStreamUnavailable is returned when the executor yields no token stream.
	ErrStreamUnavailable = errors.New("token stream unavailable")
	// ErrUnsupportedMode is returned for response modes with no consumption strategy.
	ErrUnsupportedMode = errors.New("unsupported response mode")
	// ErrCancelled is returned when the invocation is torn down before the stream ends.
	ErrCancelled = errors.New("invocation cancelled")
	// ErrAgentBusy is returned when another invocation of the same agent is in progress.
	ErrAgentBusy = errors.New("agent is busy")
	// ErrSessionBusy is returned when a session is already being dispatched.
	ErrSessionBusy = errors.New("session is already dispatching")
	// ErrInvalidTransition is returned for any state change other than Idle→Handling→Finished.
	ErrInvalidTransition = errors.New("invalid session state transition")
	// ErrUnknownAgent is returned when no agent is registered under the requested name.
	ErrUnknownAgent = errors.New("unknown agent")
)
