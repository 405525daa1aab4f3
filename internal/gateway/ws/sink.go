package ws

import (
	"context"
	"sync"

	"github.com/dohr-michael/autodev/internal/agent"
)

// clientSink renders one chat request as ui.* frames sent to the client
// that issued it.
type clientSink struct {
	ctx       context.Context
	c         *Client
	reqID     string
	sessionID string

	mu   sync.Mutex
	next int
}

func newClientSink(ctx context.Context, c *Client, reqID, sessionID string) *clientSink {
	return &clientSink{ctx: ctx, c: c, reqID: reqID, sessionID: sessionID}
}

func (s *clientSink) emit(event string, payload any) {
	s.c.emit(s.ctx, s.reqID, s.sessionID, event, payload)
}

func (s *clientSink) AddMessage(text string, isUser bool, raw string) agent.MessageHandle {
	s.mu.Lock()
	idx := s.next
	s.next++
	s.mu.Unlock()

	s.emit(EventUIAddMessage, UIMessage{Index: idx, Text: text, IsUser: isUser, Raw: raw})
	return &clientHandle{sink: s, index: idx}
}

func (s *clientSink) RemoveLastMessage() { s.emit(EventUIRemoveLast, struct{}{}) }
func (s *clientSink) SetInput(text string) {
	s.emit(EventUISetInput, UIText{Text: text})
}
func (s *clientSink) MoveCursorToStart() { s.emit(EventUICursorStart, struct{}{}) }
func (s *clientSink) HiddenProgressBar() { s.emit(EventUIHideProgress, struct{}{}) }
func (s *clientSink) UpdateUI()          { s.emit(EventUIUpdateUI, struct{}{}) }

func (s *clientSink) AppendEmbeddedView(text string, vc agent.ViewContext) {
	s.emit(EventUIEmbeddedView, UIView{Text: text, Agent: vc.Agent, SessionID: vc.SessionID})
}

type clientHandle struct {
	sink  *clientSink
	index int
}

func (h *clientHandle) Append(delta string) {
	h.sink.emit(EventUIAppend, UIText{Index: h.index, Text: delta})
}

func (h *clientHandle) Update(text string) {
	h.sink.emit(EventUIUpdate, UIText{Index: h.index, Text: text})
}

func (h *clientHandle) ReRender() {
	h.sink.emit(EventUIReRender, UIText{Index: h.index})
}
