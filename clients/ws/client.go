// Package ws provides a WebSocket client for the autodev gateway.
package ws

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	wsprotocol "github.com/dohr-michael/autodev/internal/gateway/ws"
)

// Client is a WebSocket client for the autodev gateway. Requests are issued
// one at a time; frames of other requests are skipped while waiting.
type Client struct {
	conn   *websocket.Conn
	reqSeq uint64
}

// Dial connects to the gateway WebSocket endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}
	conn.SetReadLimit(4 << 20)
	return &Client{conn: conn}, nil
}

func (c *Client) nextID() string {
	return fmt.Sprintf("req-%d", atomic.AddUint64(&c.reqSeq, 1))
}

// ReadFrame reads the next frame from the connection.
func (c *Client) ReadFrame(ctx context.Context) (wsprotocol.Frame, error) {
	var f wsprotocol.Frame
	err := wsjson.Read(ctx, c.conn, &f)
	return f, err
}

// Call sends a request and feeds its event frames to onEvent until the
// response arrives, which is returned. When ctx is cancelled first, a
// cancel request is sent so that the gateway stops the invocation.
func (c *Client) Call(ctx context.Context, method wsprotocol.Method, params any, onEvent func(wsprotocol.Frame)) (wsprotocol.Frame, error) {
	id := c.nextID()
	req, err := wsprotocol.Request(id, method, params)
	if err != nil {
		return wsprotocol.Frame{}, err
	}
	if err := wsjson.Write(ctx, c.conn, req); err != nil {
		return wsprotocol.Frame{}, fmt.Errorf("ws send: %w", err)
	}

	// Reads use a context detached from ctx: cancelling a read closes the
	// connection, and we still need it to deliver the cancel request.
	readCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()
	go func() {
		select {
		case <-ctx.Done():
			cf, err := wsprotocol.Request(c.nextID(), wsprotocol.MethodCancel, wsprotocol.CancelParams{ID: id})
			if err == nil {
				_ = wsjson.Write(readCtx, c.conn, cf)
			}
		case <-readCtx.Done():
		}
	}()

	for {
		f, err := c.ReadFrame(readCtx)
		if err != nil {
			return wsprotocol.Frame{}, fmt.Errorf("ws read: %w", err)
		}
		if f.ID != id {
			continue
		}
		switch f.Type {
		case wsprotocol.FrameTypeEvent:
			if onEvent != nil {
				onEvent(f)
			}
		case wsprotocol.FrameTypeResponse:
			if f.OK == nil || !*f.OK {
				if ctx.Err() != nil {
					return wsprotocol.Frame{}, ctx.Err()
				}
				return wsprotocol.Frame{}, errors.New(f.Error)
			}
			return f, nil
		}
	}
}

// Chat runs a chat turn, replaying its ui.* frames into sink.
func (c *Client) Chat(ctx context.Context, params wsprotocol.ChatParams, sink Sink) (wsprotocol.ChatResult, error) {
	r := NewReplayer(sink)
	f, err := c.Call(ctx, wsprotocol.MethodChat, params, r.Apply)
	if err != nil {
		return wsprotocol.ChatResult{}, err
	}
	var res wsprotocol.ChatResult
	if err := f.Decode(&res); err != nil {
		return wsprotocol.ChatResult{}, fmt.Errorf("decode chat result: %w", err)
	}
	return res, nil
}

// Rename streams rename candidates to onCandidate.
func (c *Client) Rename(ctx context.Context, params wsprotocol.RenameParams, onCandidate func(string)) (int, error) {
	f, err := c.Call(ctx, wsprotocol.MethodRename, params, func(ev wsprotocol.Frame) {
		var cand wsprotocol.UICandidate
		if ev.Event == wsprotocol.EventUICandidate && ev.Decode(&cand) == nil {
			onCandidate(cand.Candidate)
		}
	})
	if err != nil {
		return 0, err
	}
	var res wsprotocol.RenameResult
	if err := f.Decode(&res); err != nil {
		return 0, fmt.Errorf("decode rename result: %w", err)
	}
	return res.Count, nil
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
