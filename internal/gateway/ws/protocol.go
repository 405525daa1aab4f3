package ws

import (
	"encoding/json"
	"fmt"
)

// FrameType represents the type of WebSocket frame.
type FrameType string

const (
	FrameTypeRequest  FrameType = "req"
	FrameTypeResponse FrameType = "res"
	FrameTypeEvent    FrameType = "event"
)

// Method represents a WebSocket request method.
type Method string

const (
	MethodChat   Method = "chat"
	MethodRename Method = "rename"
	MethodCancel Method = "cancel"
)

// UI events are sent only to the client whose request produced them. Their
// Frame.ID is the request ID.
const (
	EventUIAddMessage   = "ui.add_message"
	EventUIAppend       = "ui.append"
	EventUIUpdate       = "ui.update"
	EventUIReRender     = "ui.rerender"
	EventUIRemoveLast   = "ui.remove_last"
	EventUISetInput     = "ui.set_input"
	EventUICursorStart  = "ui.cursor_start"
	EventUIHideProgress = "ui.hide_progress"
	EventUIUpdateUI     = "ui.update_ui"
	EventUIEmbeddedView = "ui.embedded_view"
	EventUICandidate    = "ui.candidate"
)

// Frame is the WebSocket protocol envelope.
type Frame struct {
	Type      FrameType       `json:"type"`
	ID        string          `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	OK        *bool           `json:"ok,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
	Event     string          `json:"event,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
}

// ChatParams are the params of a chat request. An empty SessionID uses the
// connection's own conversation.
type ChatParams struct {
	Agent     string `json:"agent,omitempty"`
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResult is the payload of a successful chat response.
type ChatResult struct {
	FinalText string `json:"final_text"`
	Script    string `json:"script,omitempty"`
	HasScript bool   `json:"has_script,omitempty"`
}

// RenameParams are the params of a rename request.
type RenameParams struct {
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Code     string `json:"code,omitempty"`
}

// RenameResult is the payload of a finished rename request.
type RenameResult struct {
	Count int `json:"count"`
}

// CancelParams names the in-flight request to cancel.
type CancelParams struct {
	ID string `json:"id"`
}

// UIMessage is the payload of ui.add_message.
type UIMessage struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	IsUser bool   `json:"is_user,omitempty"`
	Raw    string `json:"raw,omitempty"`
}

// UIText is the payload of ui.append, ui.update, ui.rerender and ui.set_input.
type UIText struct {
	Index int    `json:"index,omitempty"`
	Text  string `json:"text,omitempty"`
}

// UIView is the payload of ui.embedded_view.
type UIView struct {
	Text      string `json:"text"`
	Agent     string `json:"agent"`
	SessionID string `json:"session_id,omitempty"`
}

// UICandidate is the payload of ui.candidate.
type UICandidate struct {
	Candidate string `json:"candidate"`
}

// Encode serializes f for the wire.
func (f Frame) Encode() ([]byte, error) { return json.Marshal(f) }

// Decode unmarshals the params of a request frame, or the payload of any
// other frame, into v.
func (f Frame) Decode(v any) error {
	body := f.Payload
	if f.Type == FrameTypeRequest {
		body = f.Params
	}
	if len(body) == 0 {
		return fmt.Errorf("%s frame %q has no body", f.Type, f.ID)
	}
	return json.Unmarshal(body, v)
}

// Request builds a request frame carrying params.
func Request(id string, method Method, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s params: %w", method, err)
	}
	return Frame{Type: FrameTypeRequest, ID: id, Method: string(method), Params: raw}, nil
}

// Notify builds an event frame. Request-scoped UI events also set Frame.ID.
func Notify(event, sessionID string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s: %w", event, err)
	}
	return Frame{Type: FrameTypeEvent, Event: event, SessionID: sessionID, Payload: raw}, nil
}

// Reply builds the successful response to request id. A nil payload is
// omitted.
func Reply(id string, payload any) (Frame, error) {
	ok := true
	f := Frame{Type: FrameTypeResponse, ID: id, OK: &ok}
	if payload == nil {
		return f, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	f.Payload = raw
	return f, nil
}

// Failure builds the error response to request id.
func Failure(id, msg string) Frame {
	ok := false
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Error: msg}
}
