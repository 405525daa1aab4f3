package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/autodev/internal/interpreter"
)

// recordingSink records every sink call in order.
type recordingSink struct {
	mu       sync.Mutex
	calls    []string
	messages []*recordedMessage
	input    string
	views    []string
	onAppend func(delta string)
}

type recordedMessage struct {
	sink   *recordingSink
	text   string
	isUser bool
}

func (m *recordedMessage) Append(delta string) {
	m.sink.mu.Lock()
	m.text += delta
	m.sink.calls = append(m.sink.calls, "append:"+delta)
	hook := m.sink.onAppend
	m.sink.mu.Unlock()
	if hook != nil {
		hook(delta)
	}
}

func (m *recordedMessage) Update(text string) {
	m.sink.record("update:" + text)
	m.sink.mu.Lock()
	m.text = text
	m.sink.mu.Unlock()
}

func (m *recordedMessage) ReRender() { m.sink.record("rerender") }

func (s *recordingSink) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *recordingSink) AddMessage(text string, isUser bool, _ string) MessageHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &recordedMessage{sink: s, text: text, isUser: isUser}
	s.messages = append(s.messages, m)
	s.calls = append(s.calls, fmt.Sprintf("add:%t:%s", isUser, text))
	return m
}

func (s *recordingSink) RemoveLastMessage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.messages); n > 0 {
		s.messages = s.messages[:n-1]
	}
	s.calls = append(s.calls, "remove-last")
}

func (s *recordingSink) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
	s.calls = append(s.calls, "set-input:"+text)
}

func (s *recordingSink) MoveCursorToStart() { s.record("cursor-start") }
func (s *recordingSink) HiddenProgressBar() { s.record("hide-progress") }
func (s *recordingSink) UpdateUI()          { s.record("update-ui") }

func (s *recordingSink) AppendEmbeddedView(text string, vc ViewContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views = append(s.views, text)
	s.calls = append(s.calls, "view:"+vc.Agent+":"+text)
}

func (s *recordingSink) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *recordingSink) count(call string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// recordingLogger collects error messages.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

type recordingBridge struct {
	mu    sync.Mutex
	calls []interpreter.ScriptContext
	err   error
}

func (b *recordingBridge) Execute(_ context.Context, sc interpreter.ScriptContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, sc)
	return b.err
}

func chunks(parts ...string) *schema.StreamReader[string] {
	return schema.StreamReaderFromArray(parts)
}

func handlingSession(mode ResponseMode) *Session {
	s := NewSession(AgentConfig{Name: "helper", Mode: mode, Language: DefaultLanguage})
	if err := s.Begin(); err != nil {
		panic(err)
	}
	return s
}
