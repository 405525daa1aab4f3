package events

import (
	"encoding/json"
	"slices"
	"testing"
	"time"
)

func TestExtractPayload_InProcessAndDecoded(t *testing.T) {
	call := LLMCallPayload{
		Phase:        "response",
		Model:        "claude-sonnet",
		Provider:     "Claude",
		TokensInput:  1200,
		TokensOutput: 300,
		Duration:     1500 * time.Millisecond,
	}
	live := NewTypedEventWithSession(SourceAgent, call, "sess_1")

	// Same event after a trip through the event log or the websocket.
	raw, err := json.Marshal(live)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Event
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}

	for name, e := range map[string]Event{"live": live, "decoded": decoded} {
		got, ok := ExtractPayload[LLMCallPayload](e)
		if !ok {
			t.Fatalf("%s: ExtractPayload failed", name)
		}
		if got != call {
			t.Errorf("%s: got %+v, want %+v", name, got, call)
		}
		if e.SessionID != "sess_1" || e.Type != EventLLMCall {
			t.Errorf("%s: envelope = %s/%s", name, e.SessionID, e.Type)
		}
	}
}

func TestExtractPayload_Mismatch(t *testing.T) {
	e := NewTypedEvent(SourceRename, SuggestionPayload{Name: "tmp", Candidate: "count", Index: 1})
	if _, ok := ExtractPayload[ScriptPayload](e); ok {
		t.Error("suggestion decoded as script")
	}

	// Right type, payload that cannot fit.
	bad := NewEvent(EventSuggestion, SourceRename, map[string]any{"index": "first"})
	if _, ok := ExtractPayload[SuggestionPayload](bad); ok {
		t.Error("string index decoded into int")
	}
}

func TestTypedEvent_PayloadMapMatchesJSONTags(t *testing.T) {
	e := NewTypedEvent(SourceAgent, AssistantMessagePayload{Content: "done", Agent: "reviewer", Script: "/commit"})
	for key, want := range map[string]any{"content": "done", "agent": "reviewer", "script": "/commit"} {
		if got := e.Payload[key]; got != want {
			t.Errorf("payload[%q] = %v, want %v", key, got, want)
		}
	}
	if _, present := e.Payload["error"]; present {
		t.Error("omitempty field serialized")
	}
}

func TestEventTypesAreDistinct(t *testing.T) {
	payloads := []EventPayload{
		UserMessagePayload{}, AssistantStreamPayload{}, AssistantMessagePayload{},
		EmbeddedViewPayload{}, SessionStatePayload{}, SuggestionPayload{},
		ScriptPayload{}, ScriptExecutedPayload{}, LLMCallPayload{},
	}
	seen := map[EventType]bool{}
	for _, p := range payloads {
		if seen[p.EventType()] {
			t.Errorf("duplicate event type %s", p.EventType())
		}
		seen[p.EventType()] = true
	}
}

func TestEventIDsSortByCreation(t *testing.T) {
	var ids []string
	for i := 0; i < 50; i++ {
		ids = append(ids, NewEvent(EventUserMessage, SourceCLI, nil).ID)
	}
	if !slices.IsSorted(ids) {
		t.Error("event ids are not time ordered")
	}
	if len(slices.Compact(slices.Clone(ids))) != len(ids) {
		t.Error("duplicate event ids")
	}
}
