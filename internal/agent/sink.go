package agent

import "sync"

// ProvisionalText is shown while a Direct response is being drained.
const ProvisionalText = "loading"

// MessageHandle is a message previously added to a MessageSink.
type MessageHandle interface {
	// Append adds a streamed fragment to the message.
	Append(delta string)
	// Update replaces the message text.
	Update(text string)
	// ReRender re-renders the message from its current text (e.g. as markdown).
	ReRender()
}

// ViewContext accompanies text forwarded to an embedded renderer.
type ViewContext struct {
	Agent     string `json:"agent"`
	SessionID string `json:"session_id"`
}

// MessageSink is the chat surface an invocation renders into.
// Implementations must tolerate repeated Append/AddMessage calls.
type MessageSink interface {
	AddMessage(text string, isUser bool, raw string) MessageHandle
	RemoveLastMessage()
	SetInput(text string)
	MoveCursorToStart()
	HiddenProgressBar()
	UpdateUI()
	AppendEmbeddedView(text string, vc ViewContext)
}

// onceSink forwards to a MessageSink but lets the one-shot side effects
// through at most once per invocation.
type onceSink struct {
	MessageSink
	hideOnce   sync.Once
	updateOnce sync.Once
}

func newOnceSink(s MessageSink) *onceSink {
	return &onceSink{MessageSink: s}
}

func (o *onceSink) HiddenProgressBar() {
	o.hideOnce.Do(o.MessageSink.HiddenProgressBar)
}

func (o *onceSink) UpdateUI() {
	o.updateOnce.Do(o.MessageSink.UpdateUI)
}

// DiscardSink ignores everything. Useful for headless callers that only
// need the dispatch Result.
type DiscardSink struct{}

type discardHandle struct{}

func (discardHandle) Append(string) {}
func (discardHandle) Update(string) {}
func (discardHandle) ReRender()     {}

func (DiscardSink) AddMessage(string, bool, string) MessageHandle { return discardHandle{} }
func (DiscardSink) RemoveLastMessage()                            {}
func (DiscardSink) SetInput(string)                               {}
func (DiscardSink) MoveCursorToStart()                            {}
func (DiscardSink) HiddenProgressBar()                            {}
func (DiscardSink) UpdateUI()                                     {}
func (DiscardSink) AppendEmbeddedView(string, ViewContext)        {}
