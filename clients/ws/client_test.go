package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dohr-michael/autodev/internal/agent"
	"github.com/dohr-michael/autodev/internal/events"
	wsprotocol "github.com/dohr-michael/autodev/internal/gateway/ws"
	"github.com/dohr-michael/autodev/internal/parser"
	"github.com/dohr-michael/autodev/internal/rename"
)

// traceSink records sink calls as short strings.
type traceSink struct {
	mu    sync.Mutex
	calls []string
}

func (s *traceSink) record(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

type traceHandle struct {
	s   *traceSink
	idx int
}

func (h traceHandle) Append(d string) { h.s.record("append:%d:%s", h.idx, d) }
func (h traceHandle) Update(t string) { h.s.record("update:%d:%s", h.idx, t) }
func (h traceHandle) ReRender()       { h.s.record("rerender:%d", h.idx) }

func (s *traceSink) AddMessage(text string, isUser bool, _ string) agent.MessageHandle {
	s.mu.Lock()
	idx := 0
	for _, c := range s.calls {
		if strings.HasPrefix(c, "add:") {
			idx++
		}
	}
	s.mu.Unlock()
	s.record("add:%t:%s", isUser, text)
	return traceHandle{s: s, idx: idx}
}
func (s *traceSink) RemoveLastMessage()   { s.record("remove-last") }
func (s *traceSink) SetInput(text string) { s.record("set-input:%s", text) }
func (s *traceSink) MoveCursorToStart()   { s.record("cursor-start") }
func (s *traceSink) HiddenProgressBar()   { s.record("hide-progress") }
func (s *traceSink) UpdateUI()            { s.record("update-ui") }
func (s *traceSink) AppendEmbeddedView(text string, vc agent.ViewContext) {
	s.record("view:%s:%s", vc.Agent, text)
}

// directChat replays what the dispatcher does for a Direct agent.
type directChat struct{}

func (directChat) HandleChat(_ context.Context, req agent.ChatRequest, sink agent.MessageSink) (agent.Result, error) {
	sink.AddMessage(req.Prompt, true, req.Prompt)
	h := sink.AddMessage(agent.ProvisionalText, false, "")
	sink.HiddenProgressBar()
	h.Update("answer")
	h.ReRender()
	sink.UpdateUI()
	return agent.Result{FinalText: "answer"}, nil
}

type captureChat struct{}

func (captureChat) HandleChat(_ context.Context, req agent.ChatRequest, sink agent.MessageSink) (agent.Result, error) {
	sink.AddMessage(req.Prompt, true, req.Prompt)
	sink.HiddenProgressBar()
	sink.RemoveLastMessage()
	sink.SetInput("draft")
	sink.MoveCursorToStart()
	sink.AppendEmbeddedView("<b>x</b>", agent.ViewContext{Agent: "viewer"})
	sink.UpdateUI()
	return agent.Result{FinalText: "draft"}, nil
}

type waitChat struct{ done chan struct{} }

func (w waitChat) HandleChat(ctx context.Context, _ agent.ChatRequest, _ agent.MessageSink) (agent.Result, error) {
	<-ctx.Done()
	close(w.done)
	return agent.Result{}, agent.ErrCancelled
}

type sliceRenamer []string

func (s sliceRenamer) Suggest(_ context.Context, _ rename.Request, sink parser.CandidateSink) (int, error) {
	for _, c := range s {
		sink.AddCandidate(c)
	}
	return len(s), nil
}

func dialGateway(t *testing.T, cfg wsprotocol.HubConfig) *Client {
	t.Helper()
	bus := events.NewBus(64)
	t.Cleanup(bus.Close)
	hub := wsprotocol.NewHub(bus, cfg)
	t.Cleanup(hub.Close)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestChat_ReplaysDirect(t *testing.T) {
	c := dialGateway(t, wsprotocol.HubConfig{Chat: directChat{}})
	sink := &traceSink{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := c.Chat(ctx, wsprotocol.ChatParams{Prompt: "q"}, sink)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.FinalText != "answer" {
		t.Errorf("final text = %q", res.FinalText)
	}

	want := []string{
		"add:true:q",
		"add:false:loading",
		"hide-progress",
		"update:1:answer",
		"rerender:1",
		"update-ui",
	}
	if diff := cmp.Diff(want, sink.calls); diff != "" {
		t.Errorf("replayed calls mismatch (-want +got):\n%s", diff)
	}
}

func TestChat_ReplaysCapture(t *testing.T) {
	c := dialGateway(t, wsprotocol.HubConfig{Chat: captureChat{}})
	sink := &traceSink{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.Chat(ctx, wsprotocol.ChatParams{Prompt: "q"}, sink); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	want := []string{
		"add:true:q",
		"hide-progress",
		"remove-last",
		"set-input:draft",
		"cursor-start",
		"view:viewer:<b>x</b>",
		"update-ui",
	}
	if diff := cmp.Diff(want, sink.calls); diff != "" {
		t.Errorf("replayed calls mismatch (-want +got):\n%s", diff)
	}
}

func TestChat_CancelPropagates(t *testing.T) {
	chat := waitChat{done: make(chan struct{})}
	c := dialGateway(t, wsprotocol.HubConfig{Chat: chat})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := c.Chat(ctx, wsprotocol.ChatParams{Prompt: "q"}, &traceSink{})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	select {
	case <-chat.done:
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not cancel the invocation")
	}
}

func TestRename(t *testing.T) {
	c := dialGateway(t, wsprotocol.HubConfig{Rename: sliceRenamer{"a", "b"}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got []string
	n, err := c.Rename(ctx, wsprotocol.RenameParams{Name: "x"}, func(s string) { got = append(got, s) })
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if n != 2 || !cmp.Equal([]string{"a", "b"}, got) {
		t.Fatalf("unexpected rename result: n=%d got=%v", n, got)
	}
}

func TestReplayer_UnknownIndexIgnored(t *testing.T) {
	sink := &traceSink{}
	r := NewReplayer(sink)
	r.Apply(wsprotocol.Frame{Event: wsprotocol.EventUIAppend, Payload: []byte(`{"index":3,"text":"x"}`)})
	r.Apply(wsprotocol.Frame{Event: "ui.future", Payload: []byte(`{}`)})
	if len(sink.calls) != 0 {
		t.Fatalf("expected no calls, got %v", sink.calls)
	}
}
