package tui

import "github.com/dohr-michael/autodev/internal/agent"

// Sink operations travel to the model as messages so that the chat runs
// outside the bubbletea event loop.
type (
	addMessageMsg struct {
		id     int
		text   string
		isUser bool
	}
	appendMsg struct {
		id    int
		delta string
	}
	updateMsg struct {
		id   int
		text string
	}
	rerenderMsg     struct{ id int }
	removeLastMsg   struct{}
	setInputMsg     struct{ text string }
	cursorStartMsg  struct{}
	hideProgressMsg struct{}
	updateUIMsg     struct{}
	embeddedViewMsg struct {
		text string
		vc   agent.ViewContext
	}
)

// turnDoneMsg ends a chat turn.
type turnDoneMsg struct {
	res agent.Result
	err error
}
