// Package ws bridges WebSocket clients to the event bus and lets remote IDE
// clients drive chat and rename requests.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/dohr-michael/autodev/internal/agent"
	"github.com/dohr-michael/autodev/internal/events"
	"github.com/dohr-michael/autodev/internal/parser"
	"github.com/dohr-michael/autodev/internal/rename"
)

// ChatHandler runs chat turns.
type ChatHandler interface {
	HandleChat(ctx context.Context, req agent.ChatRequest, sink agent.MessageSink) (agent.Result, error)
}

// Renamer produces rename suggestions.
type Renamer interface {
	Suggest(ctx context.Context, req rename.Request, sink parser.CandidateSink) (int, error)
}

// HubConfig wires a Hub. Chat and Rename are optional; requests for a
// missing handler are answered with an error frame.
type HubConfig struct {
	Chat   ChatHandler
	Rename Renamer
}

// Client represents a connected WebSocket client.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// Hub manages WebSocket clients and bridges them to the event bus.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	bus         *events.Bus
	chat        ChatHandler
	renamer     Renamer
	unsubscribe func()
}

// NewHub creates a new WebSocket hub connected to an event bus.
func NewHub(bus *events.Bus, cfg HubConfig) *Hub {
	h := &Hub{
		clients: make(map[*Client]struct{}),
		bus:     bus,
		chat:    cfg.Chat,
		renamer: cfg.Rename,
	}

	h.unsubscribe = bus.Subscribe(func(e events.Event) {
		frame, err := Notify(string(e.Type), e.SessionID, e)
		if err != nil {
			slog.Error("ws event frame", "type", e.Type, "error", err)
			return
		}
		data, err := frame.Encode()
		if err != nil {
			slog.Error("ws event frame", "type", e.Type, "error", err)
			return
		}
		h.broadcast(data)
	})

	return h
}

// broadcast sends data to all connected clients.
func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client too slow, skip
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	slog.Info("ws client connected", "client", c.id, "clients", len(h.clients))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		slog.Info("ws client disconnected", "client", c.id, "clients", len(h.clients))
	}
}

// ServeWS handles a WebSocket upgrade and manages the client lifecycle.
// Requests still running when the connection drops are cancelled.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // IDE plugins connect from arbitrary origins
	})
	if err != nil {
		slog.Error("ws accept", "error", err)
		return
	}

	client := &Client{
		id:       "ws_" + strings.ReplaceAll(uuid.New().String()[:8], "-", ""),
		conn:     conn,
		send:     make(chan []byte, 256),
		hub:      h,
		inflight: make(map[string]context.CancelFunc),
	}

	h.register(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go client.writePump(ctx)
	client.readPump(ctx, cancel)
}

// readPump reads frames from the WS connection and dispatches them.
func (c *Client) readPump(ctx context.Context, cancel context.CancelFunc) {
	defer func() {
		cancel()
		c.wg.Wait()
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("ws read closed", "status", websocket.CloseStatus(err))
			} else {
				slog.Debug("ws read error", "error", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Warn("ws malformed frame", "client", c.id, "error", err)
			continue
		}

		if frame.Type != FrameTypeRequest {
			slog.Debug("ws unknown frame type", "type", frame.Type)
			continue
		}
		c.handleRequest(ctx, frame)
	}
}

// handleRequest dispatches a request frame by method. Chat and rename run
// in their own goroutine so that cancel requests can be read meanwhile.
func (c *Client) handleRequest(ctx context.Context, frame Frame) {
	switch Method(frame.Method) {
	case MethodChat:
		var params ChatParams
		if err := frame.Decode(&params); err != nil || strings.TrimSpace(params.Prompt) == "" {
			c.sendError(ctx, frame.ID, "invalid params")
			return
		}
		if c.hub.chat == nil {
			c.sendError(ctx, frame.ID, "chat not available")
			return
		}
		sessionID := params.SessionID
		if sessionID == "" {
			sessionID = c.id
		}
		c.start(ctx, frame.ID, func(ctx context.Context) (any, error) {
			sink := newClientSink(ctx, c, frame.ID, sessionID)
			res, err := c.hub.chat.HandleChat(ctx, agent.ChatRequest{
				Prompt:    params.Prompt,
				Agent:     params.Agent,
				SessionID: sessionID,
			}, sink)
			if err != nil {
				return nil, err
			}
			return ChatResult{FinalText: res.FinalText, Script: res.Script, HasScript: res.HasScript}, nil
		})

	case MethodRename:
		var params RenameParams
		if err := frame.Decode(&params); err != nil || params.Name == "" {
			c.sendError(ctx, frame.ID, "invalid params")
			return
		}
		if c.hub.renamer == nil {
			c.sendError(ctx, frame.ID, "rename not available")
			return
		}
		c.start(ctx, frame.ID, func(ctx context.Context) (any, error) {
			n, err := c.hub.renamer.Suggest(ctx, rename.Request(params), parser.CandidateFunc(func(s string) {
				c.emit(ctx, frame.ID, "", EventUICandidate, UICandidate{Candidate: s})
			}))
			if err != nil {
				return nil, err
			}
			return RenameResult{Count: n}, nil
		})

	case MethodCancel:
		var params CancelParams
		if err := frame.Decode(&params); err != nil {
			c.sendError(ctx, frame.ID, "invalid params")
			return
		}
		c.sendOK(ctx, frame.ID, map[string]bool{"cancelled": c.cancel(params.ID)})

	default:
		c.sendError(ctx, frame.ID, "unknown method: "+frame.Method)
	}
}

// start runs fn as the in-flight request id and answers with its result.
func (c *Client) start(ctx context.Context, id string, fn func(context.Context) (any, error)) {
	if id == "" {
		c.sendError(ctx, id, "missing request id")
		return
	}

	reqCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if _, dup := c.inflight[id]; dup {
		c.mu.Unlock()
		cancel()
		c.sendError(ctx, id, "duplicate request id")
		return
	}
	c.inflight[id] = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer c.cancel(id)

		payload, err := fn(reqCtx)
		// The answer outlives the request context; only the connection
		// closing stops it.
		switch {
		case errors.Is(err, agent.ErrCancelled), errors.Is(err, context.Canceled):
			c.sendError(ctx, id, "cancelled")
		case err != nil:
			c.sendError(ctx, id, err.Error())
		default:
			c.sendOK(ctx, id, payload)
		}
	}()
}

// cancel stops the in-flight request id and reports whether it existed.
func (c *Client) cancel(id string) bool {
	c.mu.Lock()
	cancel, ok := c.inflight[id]
	delete(c.inflight, id)
	c.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// writePump writes queued messages to the WS connection.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// emit queues a request-scoped event frame. Unlike broadcasts it waits for
// room in the queue so that no UI step is lost.
func (c *Client) emit(ctx context.Context, reqID, sessionID, event string, payload any) {
	f, err := Notify(event, sessionID, payload)
	if err != nil {
		slog.Error("ws ui frame", "event", event, "error", err)
		return
	}
	f.ID = reqID
	data, err := f.Encode()
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-ctx.Done():
	}
}

func (c *Client) sendOK(ctx context.Context, id string, payload any) {
	f, err := Reply(id, payload)
	if err != nil {
		c.sendError(ctx, id, err.Error())
		return
	}
	c.enqueue(ctx, f)
}

func (c *Client) sendError(ctx context.Context, id string, errMsg string) {
	c.enqueue(ctx, Failure(id, errMsg))
}

// enqueue waits for room in the send queue: a response is never dropped
// while the connection is open, otherwise the caller would wait forever.
func (c *Client) enqueue(ctx context.Context, f Frame) {
	data, err := f.Encode()
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-ctx.Done():
	}
}

// Close shuts down the hub and all client connections.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutdown")
		delete(h.clients, c)
	}
}
