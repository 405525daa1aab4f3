package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/dohr-michael/autodev/internal/agent"
)

// feed applies msgs to m in order.
func feed(m tea.Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	return m.(Model)
}

// capture returns a sink whose messages are collected into *out.
func capture(out *[]tea.Msg) *ProgramSink {
	return NewProgramSink(func(msg tea.Msg) { *out = append(*out, msg) })
}

func TestSinkDrivesTranscript(t *testing.T) {
	var msgs []tea.Msg
	sink := capture(&msgs)

	sink.AddMessage("hello", true, "hello")
	h := sink.AddMessage("", false, "")
	h.Append("wor")
	h.Append("ld")
	sink.HiddenProgressBar()
	sink.UpdateUI()

	m := feed(NewModel(Options{Title: "coder"}, sink), tea.WindowSizeMsg{Width: 80, Height: 24})
	m.progress = true
	m = feed(m, msgs...)

	if diff := cmp.Diff([]string{"hello", "world"}, m.Transcript()); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
	if m.progress {
		t.Error("progress should be hidden")
	}
}

func TestDirectUpdateAndRerender(t *testing.T) {
	var msgs []tea.Msg
	sink := capture(&msgs)

	h := sink.AddMessage(agent.ProvisionalText, false, "")
	h.Update("**done**")
	h.ReRender()

	m := feed(NewModel(Options{}, sink), append([]tea.Msg{tea.WindowSizeMsg{Width: 60, Height: 20}}, msgs...)...)
	if got := m.Transcript(); len(got) != 1 || got[0] != "**done**" {
		t.Fatalf("unexpected transcript: %v", got)
	}
	if !m.entries[0].markdown {
		t.Error("entry should be rendered as markdown")
	}
}

func TestChunkedCaptureFillsInput(t *testing.T) {
	var msgs []tea.Msg
	sink := capture(&msgs)

	sink.AddMessage("write a test", true, "write a test")
	sink.RemoveLastMessage()
	sink.SetInput("line one\nline two")
	sink.MoveCursorToStart()

	m := feed(NewModel(Options{}, sink), append([]tea.Msg{tea.WindowSizeMsg{Width: 60, Height: 20}}, msgs...)...)
	if len(m.Transcript()) != 0 {
		t.Errorf("user message should be removed, got %v", m.Transcript())
	}
	if m.input.Value() != "line one\nline two" {
		t.Errorf("input = %q", m.input.Value())
	}
	if m.input.Line() != 0 {
		t.Errorf("cursor should be on the first line, got %d", m.input.Line())
	}
}

func TestEmbeddedViewAndErrors(t *testing.T) {
	var msgs []tea.Msg
	sink := capture(&msgs)
	sink.AppendEmbeddedView("<p>chart</p>", agent.ViewContext{Agent: "viewer"})

	m := feed(NewModel(Options{Title: "viewer"}, sink), append([]tea.Msg{tea.WindowSizeMsg{Width: 60, Height: 20}}, msgs...)...)
	m = feed(m, turnDoneMsg{err: errors.New("boom")}, turnDoneMsg{err: agent.ErrCancelled})

	if diff := cmp.Diff([]string{"<p>chart</p>", "boom"}, m.Transcript()); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(m.View(), "view · viewer") {
		t.Error("view should show the embedded view title")
	}
}

func TestSubmitRunsChat(t *testing.T) {
	var msgs []tea.Msg
	sink := capture(&msgs)

	var got string
	chat := func(_ context.Context, prompt string, s agent.MessageSink) (agent.Result, error) {
		got = prompt
		s.AddMessage(prompt, true, prompt)
		return agent.Result{FinalText: "ok"}, nil
	}

	m := NewModel(Options{Chat: chat}, sink)
	next, cmd := m.Update(submitMsg{prompt: "hi"})
	if !next.(Model).busy {
		t.Fatal("model should be busy after submit")
	}

	// The batch holds the chat run and the spinner tick; run the chat.
	batch, ok := cmd().(tea.BatchMsg)
	if !ok {
		t.Fatalf("expected a batch command")
	}
	var done tea.Msg
	for _, c := range batch {
		if msg := c(); msg != nil {
			if d, ok := msg.(turnDoneMsg); ok {
				done = d
			}
		}
	}
	if done == nil {
		t.Fatal("chat did not finish")
	}
	if got != "hi" {
		t.Errorf("prompt = %q", got)
	}

	final := feed(next, append(msgs, done)...)
	if final.busy {
		t.Error("model should be idle after the turn")
	}
	if diff := cmp.Diff([]string{"hi"}, final.Transcript()); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
}

func TestCtrlCCancelsThenQuits(t *testing.T) {
	cancelled := false
	m := NewModel(Options{}, NewProgramSink(func(tea.Msg) {}))
	m.busy = true
	m.cancel = func() { cancelled = true }

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !cancelled || cmd != nil {
		t.Fatal("first ctrl+c should cancel the running turn")
	}

	idle := next.(Model)
	idle.busy = false
	if _, cmd := idle.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); cmd == nil {
		t.Fatal("ctrl+c on an idle panel should quit")
	}
}
