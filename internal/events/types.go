package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType names what happened; it is the routing key for subscribers.
type EventType string

const (
	EventUserMessage      EventType = "user.message"
	EventAssistantStream  EventType = "assistant.stream" // transient, see Transient
	EventAssistantMessage EventType = "assistant.message"
	EventEmbeddedView     EventType = "view.embedded"
	EventSessionState     EventType = "session.state"
	EventSuggestion       EventType = "suggestion.candidate"
	EventScriptExtracted  EventType = "script.extracted"
	EventScriptExecuted   EventType = "script.executed"
	EventLLMCall          EventType = "internal.llm.call"
)

// EventSource names the component that published an event.
type EventSource string

const (
	SourceAgent       EventSource = "agent"
	SourceRename      EventSource = "rename"
	SourceInterpreter EventSource = "interpreter"
	SourceWS          EventSource = "ws"
	SourceMCP         EventSource = "mcp"
	SourceCLI         EventSource = "cli"
)

// Event is the envelope carried by the bus, written to the event log and
// forwarded to gateway clients.
type Event struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id,omitempty"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    EventSource    `json:"source"`
	Payload   map[string]any `json:"payload"`

	// typed is the payload an in-process publisher started from. Events
	// decoded from JSON do not have it.
	typed EventPayload
}

// NewEvent builds an event from an untyped payload.
func NewEvent(eventType EventType, source EventSource, payload map[string]any) Event {
	return Event{
		ID:        newEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Payload:   payload,
	}
}

// Event ids are UUIDv7, so they sort by creation time.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
