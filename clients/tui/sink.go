package tui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dohr-michael/autodev/internal/agent"
)

// ProgramSink is an agent.MessageSink forwarding every call to a bubbletea
// program. Calls are delivered in order.
type ProgramSink struct {
	send func(tea.Msg)
	next atomic.Int64
}

// NewProgramSink creates a sink delivering messages through send, usually
// (*tea.Program).Send.
func NewProgramSink(send func(tea.Msg)) *ProgramSink {
	return &ProgramSink{send: send}
}

func (s *ProgramSink) AddMessage(text string, isUser bool, _ string) agent.MessageHandle {
	id := int(s.next.Add(1))
	s.send(addMessageMsg{id: id, text: text, isUser: isUser})
	return programHandle{s: s, id: id}
}

func (s *ProgramSink) RemoveLastMessage()   { s.send(removeLastMsg{}) }
func (s *ProgramSink) SetInput(text string) { s.send(setInputMsg{text: text}) }
func (s *ProgramSink) MoveCursorToStart()   { s.send(cursorStartMsg{}) }
func (s *ProgramSink) HiddenProgressBar()   { s.send(hideProgressMsg{}) }
func (s *ProgramSink) UpdateUI()            { s.send(updateUIMsg{}) }

func (s *ProgramSink) AppendEmbeddedView(text string, vc agent.ViewContext) {
	s.send(embeddedViewMsg{text: text, vc: vc})
}

type programHandle struct {
	s  *ProgramSink
	id int
}

func (h programHandle) Append(delta string) { h.s.send(appendMsg{id: h.id, delta: delta}) }
func (h programHandle) Update(text string)  { h.s.send(updateMsg{id: h.id, text: text}) }
func (h programHandle) ReRender()           { h.s.send(rerenderMsg{id: h.id}) }
