// Package console renders agent output on a plain terminal or pipe. Text
// that streams is written as it arrives; text that is replaced or
// re-rendered is printed once the response settles.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dohr-michael/autodev/clients/render"
	"github.com/dohr-michael/autodev/internal/agent"
)

// Options control how a Sink writes.
type Options struct {
	// TTY enables cursor control to erase provisional lines.
	TTY bool
	// Markdown renders re-rendered messages with glamour.
	Markdown bool
	Width    int
}

const (
	clearLine = "\r\x1b[2K"
	lineUp    = "\x1b[1A"
)

// Sink is an agent.MessageSink writing to an io.Writer.
type Sink struct {
	mu    sync.Mutex
	w     io.Writer
	opts  Options
	cur   *message
	lines int // lines printed by the last finished message
	input string
}

type message struct {
	sink     *Sink
	text     string
	shown    bool // something is printed on the open line
	dirty    bool // text changed since it was shown
	rerender bool
}

// New creates a Sink.
func New(w io.Writer, opts Options) *Sink {
	return &Sink{w: w, opts: opts}
}

// Input returns the text last placed in the input box.
func (s *Sink) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

func (s *Sink) AddMessage(text string, isUser bool, _ string) agent.MessageHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()

	if isUser {
		out := render.UserStyle.Render("you ›") + " " + text
		fmt.Fprintln(s.w, out)
		s.lines = strings.Count(text, "\n") + 1
		return nopHandle{}
	}

	m := &message{sink: s, text: text}
	fmt.Fprint(s.w, render.AssistantStyle.Render("agent ›")+" ")
	if text != "" {
		fmt.Fprint(s.w, render.MutedStyle.Render(text))
	}
	m.shown = true
	s.cur = m
	return m
}

func (s *Sink) RemoveLastMessage() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil {
		if s.opts.TTY {
			fmt.Fprint(s.w, clearLine)
		} else {
			fmt.Fprintln(s.w)
		}
		s.cur = nil
		return
	}
	if s.opts.TTY {
		for i := 0; i < s.lines; i++ {
			fmt.Fprint(s.w, lineUp+clearLine)
		}
	}
	s.lines = 0
}

func (s *Sink) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	s.input = text
	fmt.Fprintln(s.w, render.MutedStyle.Render("input:"))
	fmt.Fprintln(s.w, render.InputBorderStyle.Render(text))
}

// MoveCursorToStart is a no-op: the console input is printed, not edited.
func (s *Sink) MoveCursorToStart() {}

// HiddenProgressBar is a no-op: the console shows no progress indicator.
func (s *Sink) HiddenProgressBar() {}

// UpdateUI settles the open message.
func (s *Sink) UpdateUI() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Sink) AppendEmbeddedView(text string, vc agent.ViewContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	title := render.MutedStyle.Render("view · " + vc.Agent)
	fmt.Fprintln(s.w, title)
	fmt.Fprintln(s.w, render.ViewBorderStyle.Render(text))
}

// flushLocked ends the open assistant message, printing its final text when
// it was replaced after being shown.
func (s *Sink) flushLocked() {
	m := s.cur
	if m == nil {
		return
	}
	s.cur = nil

	if !m.dirty {
		fmt.Fprintln(s.w)
		s.lines = strings.Count(m.text, "\n") + 1
		return
	}

	if s.opts.TTY {
		fmt.Fprint(s.w, clearLine)
	} else {
		fmt.Fprintln(s.w)
	}
	text := m.text
	if m.rerender && s.opts.Markdown {
		text = render.Markdown(text, s.opts.Width)
	}
	out := render.AssistantStyle.Render("agent ›") + " " + text
	fmt.Fprintln(s.w, out)
	s.lines = strings.Count(out, "\n") + 1
}

func (m *message) Append(delta string) {
	s := m.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != m {
		return
	}
	m.text += delta
	fmt.Fprint(s.w, delta)
}

func (m *message) Update(text string) {
	s := m.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	m.text = text
	m.dirty = true
}

func (m *message) ReRender() {
	s := m.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	m.rerender = true
	m.dirty = true
}

type nopHandle struct{}

func (nopHandle) Append(string) {}
func (nopHandle) Update(string) {}
func (nopHandle) ReRender()     {}
