package ws

import (
	"log/slog"

	"github.com/dohr-michael/autodev/internal/agent"
	wsprotocol "github.com/dohr-michael/autodev/internal/gateway/ws"
)

// Sink is the local surface gateway ui.* frames are replayed into.
type Sink = agent.MessageSink

// Replayer turns the ui.* frames of one request back into MessageSink
// calls, so remote chats render exactly like local ones.
type Replayer struct {
	sink    Sink
	handles map[int]agent.MessageHandle
}

// NewReplayer creates a Replayer writing to sink.
func NewReplayer(sink Sink) *Replayer {
	return &Replayer{sink: sink, handles: make(map[int]agent.MessageHandle)}
}

// Apply replays one frame. Unknown events are ignored.
func (r *Replayer) Apply(f wsprotocol.Frame) {
	switch f.Event {
	case wsprotocol.EventUIAddMessage:
		var m wsprotocol.UIMessage
		if r.decode(f, &m) {
			r.handles[m.Index] = r.sink.AddMessage(m.Text, m.IsUser, m.Raw)
		}
	case wsprotocol.EventUIAppend, wsprotocol.EventUIUpdate, wsprotocol.EventUIReRender:
		var t wsprotocol.UIText
		if !r.decode(f, &t) {
			return
		}
		h, ok := r.handles[t.Index]
		if !ok {
			slog.Debug("ui frame for unknown message", "event", f.Event, "index", t.Index)
			return
		}
		switch f.Event {
		case wsprotocol.EventUIAppend:
			h.Append(t.Text)
		case wsprotocol.EventUIUpdate:
			h.Update(t.Text)
		default:
			h.ReRender()
		}
	case wsprotocol.EventUIRemoveLast:
		r.sink.RemoveLastMessage()
	case wsprotocol.EventUISetInput:
		var t wsprotocol.UIText
		if r.decode(f, &t) {
			r.sink.SetInput(t.Text)
		}
	case wsprotocol.EventUICursorStart:
		r.sink.MoveCursorToStart()
	case wsprotocol.EventUIHideProgress:
		r.sink.HiddenProgressBar()
	case wsprotocol.EventUIUpdateUI:
		r.sink.UpdateUI()
	case wsprotocol.EventUIEmbeddedView:
		var v wsprotocol.UIView
		if r.decode(f, &v) {
			r.sink.AppendEmbeddedView(v.Text, agent.ViewContext{Agent: v.Agent, SessionID: v.SessionID})
		}
	}
}

func (r *Replayer) decode(f wsprotocol.Frame, v any) bool {
	if err := f.Decode(v); err != nil {
		slog.Debug("decode ui frame", "event", f.Event, "error", err)
		return false
	}
	return true
}
