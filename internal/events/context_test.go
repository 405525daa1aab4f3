package events

import (
	"context"
	"testing"
	"time"
)

func TestSessionIDRoundTrip(t *testing.T) {
	ctx := ContextWithSessionID(context.Background(), "sess_123")
	if got := SessionIDFromContext(ctx); got != "sess_123" {
		t.Fatalf("expected %q, got %q", "sess_123", got)
	}
}

func TestSessionIDFromEmptyContext(t *testing.T) {
	if got := SessionIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestPublisherTagsSession(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	ch, unsub := bus.SubscribeChan(4, EventSuggestion)
	defer unsub()

	pub := NewPublisher(bus, SourceRename)
	ctx := ContextWithSessionID(context.Background(), "sess_abc")
	pub.Publish(ctx, SuggestionPayload{Name: "foo", Candidate: "bar", Index: 1})

	select {
	case e := <-ch:
		if e.SessionID != "sess_abc" {
			t.Errorf("expected session sess_abc, got %q", e.SessionID)
		}
		if e.Source != SourceRename {
			t.Errorf("expected source rename, got %q", e.Source)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNilPublisherIsNoop(t *testing.T) {
	pub := NewPublisher(nil, SourceAgent)
	pub.Publish(context.Background(), UserMessagePayload{Content: "x"})
}
