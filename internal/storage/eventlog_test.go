package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dohr-michael/autodev/internal/events"
)

// drain publishes a marker on its own session and waits until it is
// delivered. Every event published before it has reached the logger.
func drain(t *testing.T, bus *events.Bus) {
	t.Helper()
	ch, unsub := bus.SubscribeChan(16, events.EventSessionState)
	defer unsub()

	marker := events.NewEvent(events.EventSessionState, events.SourceCLI, map[string]any{"state": "marker"})
	marker.SessionID = "zz-drain"
	bus.Publish(marker)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.ID == marker.ID {
				return
			}
		case <-timeout:
			t.Fatal("bus did not deliver marker")
		}
	}
}

func publishIn(bus *events.Bus, session string, typ events.EventType, payload map[string]any) events.Event {
	e := events.NewEvent(typ, events.SourceAgent, payload)
	e.SessionID = session
	bus.Publish(e)
	return e
}

func TestEventLogger_RoutesBySession(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	bus := events.NewBus(64)
	defer bus.Close()
	l := NewEventLogger(dir, bus)
	defer l.Close()

	a1 := publishIn(bus, "sess-a", events.EventUserMessage, map[string]any{"content": "hi"})
	b1 := publishIn(bus, "sess-b", events.EventUserMessage, map[string]any{"content": "yo"})
	a2 := publishIn(bus, "sess-a", events.EventAssistantMessage, map[string]any{"content": "hello"})
	drain(t, bus)

	ids := func(session string) []string {
		evts, err := ReadEvents(dir, session)
		if err != nil {
			t.Fatalf("ReadEvents(%s): %v", session, err)
		}
		var out []string
		for _, e := range evts {
			out = append(out, e.ID)
		}
		return out
	}

	if diff := cmp.Diff([]string{a1.ID, a2.ID}, ids("sess-a")); diff != "" {
		t.Errorf("sess-a (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{b1.ID}, ids("sess-b")); diff != "" {
		t.Errorf("sess-b (-want +got):\n%s", diff)
	}
}

func TestEventLogger_SkipsStreamFragments(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus(64)
	defer bus.Close()
	l := NewEventLogger(dir, bus)
	defer l.Close()

	for i := 0; i < 5; i++ {
		publishIn(bus, "s1", events.EventAssistantStream, map[string]any{"content": "tok"})
	}
	done := publishIn(bus, "s1", events.EventAssistantMessage, map[string]any{"content": "toktoktoktoktok"})
	drain(t, bus)

	evts, err := ReadEvents(dir, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 1 || evts[0].ID != done.ID {
		t.Fatalf("events = %+v, want only the final message", evts)
	}
	if got := evts[0].Payload["content"]; got != "toktoktoktoktok" {
		t.Errorf("payload content = %v", got)
	}
}

func TestLogPath(t *testing.T) {
	tests := []struct {
		session string
		want    string
	}{
		{"abc", "abc.jsonl"},
		{"", "_global.jsonl"},
		{"..", "_global.jsonl"},
		{"../escape", "_global.jsonl"},
		{"a/b", "_global.jsonl"},
	}
	for _, tt := range tests {
		if got := LogPath("/logs", tt.session); got != filepath.Join("/logs", tt.want) {
			t.Errorf("LogPath(%q) = %s, want %s", tt.session, got, tt.want)
		}
	}
}

func TestReadEvents_FilterAndMalformed(t *testing.T) {
	dir := t.TempDir()
	content := `{"id":"1","session_id":"s","type":"user.message","source":"cli","payload":{}}
not json
{"id":"2","session_id":"s","type":"session.state","source":"agent","payload":{"state":"finished"}}
{"id":"3","session_id":"s","type":"assistant.message","source":"agent","payload":{}}
`
	if err := os.WriteFile(LogPath(dir, "s"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	all, err := ReadEvents(dir, "s")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d events, want 3 (malformed line skipped)", len(all))
	}

	msgs, err := ReadEvents(dir, "s", events.EventUserMessage, events.EventAssistantMessage)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range msgs {
		got = append(got, e.ID)
	}
	if diff := cmp.Diff([]string{"1", "3"}, got); diff != "" {
		t.Errorf("filtered (-want +got):\n%s", diff)
	}
}

func TestReadEvents_MissingLog(t *testing.T) {
	evts, err := ReadEvents(t.TempDir(), "nope")
	if err != nil || evts != nil {
		t.Fatalf("ReadEvents = %v, %v; want nil, nil", evts, err)
	}
}

func TestEventLogger_EmptyDirDisabled(t *testing.T) {
	bus := events.NewBus(8)
	defer bus.Close()
	l := NewEventLogger("", bus)
	l.Close()
	if l.unsubscribe != nil {
		t.Error("logger with no dir should not subscribe")
	}
}
