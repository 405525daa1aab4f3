package events

import (
	"encoding/json"
	"time"
)

// EventPayload is implemented by every typed payload; the method ties the
// payload to the event type it travels under.
type EventPayload interface {
	EventType() EventType
}

// UserMessagePayload is a prompt as it entered the system.
type UserMessagePayload struct {
	Content string `json:"content"`
	Agent   string `json:"agent,omitempty"`
}

type StreamPhase string

const (
	StreamPhaseStart StreamPhase = "start"
	StreamPhaseDelta StreamPhase = "delta"
	StreamPhaseEnd   StreamPhase = "end"
)

// AssistantStreamPayload is one fragment of a streamed answer. Index counts
// delta fragments; on the end phase it is the total.
type AssistantStreamPayload struct {
	Phase   StreamPhase `json:"phase"`
	Content string      `json:"content"`
	Index   int         `json:"index"`
}

// AssistantMessagePayload closes an invocation. Script is set when the
// answer was handed to the secondary interpreter instead of displayed.
type AssistantMessagePayload struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
	Agent   string `json:"agent,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Script  string `json:"script,omitempty"`
}

type EmbeddedViewPayload struct {
	Content string `json:"content"`
	Agent   string `json:"agent,omitempty"`
}

// SessionStatePayload reports an agent session state transition.
type SessionStatePayload struct {
	Agent string `json:"agent"`
	From  string `json:"from"`
	To    string `json:"to"`
}

type SuggestionPayload struct {
	Name      string `json:"name"`
	Candidate string `json:"candidate"`
	Index     int    `json:"index"`
}

// ScriptPayload is a fenced script lifted out of an agent answer.
type ScriptPayload struct {
	Agent    string `json:"agent"`
	Language string `json:"language"`
	Script   string `json:"script"`
}

type ScriptExecutedPayload struct {
	Agent     string        `json:"agent"`
	Processor string        `json:"processor"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// LLMCallPayload traces one chat model call. Phase is request, response or
// error; token counts are provider-reported and only set on response.
type LLMCallPayload struct {
	Phase        string        `json:"phase"`
	Model        string        `json:"model"`
	Provider     string        `json:"provider,omitempty"`
	MessageCount int           `json:"message_count,omitempty"`
	TokensInput  int           `json:"tokens_input,omitempty"`
	TokensOutput int           `json:"tokens_output,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	Error        string        `json:"error,omitempty"`
}

func (UserMessagePayload) EventType() EventType      { return EventUserMessage }
func (AssistantStreamPayload) EventType() EventType  { return EventAssistantStream }
func (AssistantMessagePayload) EventType() EventType { return EventAssistantMessage }
func (EmbeddedViewPayload) EventType() EventType     { return EventEmbeddedView }
func (SessionStatePayload) EventType() EventType     { return EventSessionState }
func (SuggestionPayload) EventType() EventType       { return EventSuggestion }
func (ScriptPayload) EventType() EventType           { return EventScriptExtracted }
func (ScriptExecutedPayload) EventType() EventType   { return EventScriptExecuted }
func (LLMCallPayload) EventType() EventType          { return EventLLMCall }

// NewTypedEvent wraps payload in an event of the matching type. The map form
// is what gets serialized; the typed value is kept for in-process readers.
func NewTypedEvent(source EventSource, payload EventPayload) Event {
	e := NewEvent(payload.EventType(), source, asMap(payload))
	e.typed = payload
	return e
}

func NewTypedEventWithSession(source EventSource, payload EventPayload, sessionID string) Event {
	e := NewTypedEvent(source, payload)
	e.SessionID = sessionID
	return e
}

func asMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if json.Unmarshal(data, &m) != nil {
		return nil
	}
	return m
}

// ExtractPayload returns the payload of e as T. It fails when e is of
// another type or its map payload does not decode into T.
func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var zero T
	if e.Type != zero.EventType() {
		return zero, false
	}
	if p, ok := e.typed.(T); ok {
		return p, true
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return zero, false
	}
	var out T
	if json.Unmarshal(data, &out) != nil {
		return zero, false
	}
	return out, true
}

func GetLLMCallPayload(e Event) (LLMCallPayload, bool) {
	return ExtractPayload[LLMCallPayload](e)
}
