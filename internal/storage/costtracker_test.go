package storage

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dohr-michael/autodev/internal/events"
	"github.com/dohr-michael/autodev/internal/sessions"
)

func llmCall(session, provider, phase string, in, out int) events.Event {
	return events.NewTypedEventWithSession(events.SourceAgent, events.LLMCallPayload{
		Phase:        phase,
		Model:        "m",
		Provider:     provider,
		TokensInput:  in,
		TokensOutput: out,
		Duration:     100 * time.Millisecond,
	}, session)
}

func TestCostTracker_Totals(t *testing.T) {
	bus := events.NewBus(64)
	defer bus.Close()
	tracker := NewCostTracker(bus, nil)
	defer tracker.Close()

	for _, e := range []events.Event{
		llmCall("s", "Claude", "request", 999, 0),
		llmCall("s", "Claude", "response", 100, 40),
		llmCall("", "Claude", "response", 20, 5),
		llmCall("s", "Claude", "error", 0, 0),
		llmCall("s", "OpenAI", "response", 0, 0),
		llmCall("s", "", "response", 1, 1),
	} {
		bus.Publish(e)
	}
	drain(t, bus)

	want := map[string]ProviderUsage{
		"Claude":  {Calls: 2, Errors: 1, Input: 120, Output: 45, Latency: 200 * time.Millisecond},
		"OpenAI":  {Calls: 1, Latency: 100 * time.Millisecond},
		"unknown": {Calls: 1, Input: 1, Output: 1, Latency: 100 * time.Millisecond},
	}
	if diff := cmp.Diff(want, tracker.Totals()); diff != "" {
		t.Errorf("totals (-want +got):\n%s", diff)
	}
	if got := tracker.Totals()["Claude"].MeanLatency(); got != 100*time.Millisecond {
		t.Errorf("mean latency = %v", got)
	}
}

func TestCostTracker_SessionUsage(t *testing.T) {
	bus := events.NewBus(64)
	defer bus.Close()
	store := sessions.NewFileStore(t.TempDir())
	tracker := NewCostTracker(bus, store)
	defer tracker.Close()

	existing, err := store.Create()
	if err != nil {
		t.Fatal(err)
	}

	bus.Publish(llmCall(existing.ID, "Claude", "response", 100, 50))
	bus.Publish(llmCall(existing.ID, "Claude", "response", 200, 80))
	bus.Publish(llmCall(existing.ID, "Claude", "error", 0, 0))
	bus.Publish(llmCall("fresh-chat", "Claude", "response", 12, 3))
	bus.Publish(llmCall("empty-chat", "Claude", "response", 0, 0))
	drain(t, bus)

	tests := []struct {
		id   string
		want sessions.TokenUsage
	}{
		{existing.ID, sessions.TokenUsage{Input: 300, Output: 130}},
		{"fresh-chat", sessions.TokenUsage{Input: 12, Output: 3}},
	}
	for _, tt := range tests {
		got, err := store.Get(tt.id)
		if err != nil {
			t.Fatalf("Get(%s): %v", tt.id, err)
		}
		if got.TokenUsage != tt.want {
			t.Errorf("%s usage = %+v, want %+v", tt.id, got.TokenUsage, tt.want)
		}
	}

	// A zero-usage response must not materialize a session.
	if _, err := store.Get("empty-chat"); err == nil {
		t.Error("empty-chat was created")
	}
}

func TestCostTracker_NoSessionLeavesStoreEmpty(t *testing.T) {
	bus := events.NewBus(64)
	defer bus.Close()
	store := sessions.NewFileStore(t.TempDir())
	tracker := NewCostTracker(bus, store)
	defer tracker.Close()

	bus.Publish(llmCall("", "Gemini", "response", 10, 10))
	drain(t, bus)

	list, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("sessions = %d, want 0", len(list))
	}
}
