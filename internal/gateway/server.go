// Package gateway serves the HTTP API and the WebSocket endpoint remote IDE
// clients connect to.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/autodev/internal/agent"
	"github.com/dohr-michael/autodev/internal/events"
	"github.com/dohr-michael/autodev/internal/gateway/ws"
	"github.com/dohr-michael/autodev/internal/sessions"
	"github.com/dohr-michael/autodev/internal/storage"
)

// ServerConfig wires a Server. Everything but Bus is optional.
type ServerConfig struct {
	Bus     *events.Bus
	Store   sessions.Store
	Agents  *agent.Registry
	Tracker *agent.Tracker
	Costs   *storage.CostTracker
	Hub     ws.HubConfig
	Host    string
	Port    int
}

// Server is the autodev gateway HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	store      sessions.Store
	agents     *agent.Registry
	tracker    *agent.Tracker
	costs      *storage.CostTracker
	started    time.Time
}

// NewServer creates a new gateway server.
func NewServer(cfg ServerConfig) *Server {
	hub := ws.NewHub(cfg.Bus, cfg.Hub)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	s := &Server{
		hub:     hub,
		bus:     cfg.Bus,
		store:   cfg.Store,
		agents:  cfg.Agents,
		tracker: cfg.Tracker,
		costs:   cfg.Costs,
		started: time.Now(),
	}

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ws", hub.ServeWS)
	r.Get("/api/events", s.handleEvents)
	r.Get("/api/sessions", s.handleSessions)
	r.Get("/api/sessions/{id}", s.handleSession)
	r.Delete("/api/sessions/{id}", s.handleDeleteSession)
	r.Get("/api/agents", s.handleAgents)

	s.httpServer = &http.Server{
		Addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler: r,
	}

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("autodev gateway listening", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write json response", "error", err)
	}
}

// Health is the body of /api/health.
type Health struct {
	Status  string                         `json:"status"`
	Uptime  string                         `json:"uptime"`
	Clients int                            `json:"clients"`
	Dropped uint64                         `json:"dropped_events"`
	Usage   map[string]storage.ProviderUsage `json:"usage,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := Health{
		Status:  "ok",
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Clients: s.hub.ClientCount(),
		Dropped: s.bus.Dropped(),
	}
	if s.costs != nil {
		h.Usage = s.costs.Totals()
	}
	writeJSON(w, h)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, fmt.Sprintf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
		limit = n
	}

	var types []events.EventType
	if v := r.URL.Query().Get("type"); v != "" {
		for _, t := range strings.Split(v, ",") {
			types = append(types, events.EventType(strings.TrimSpace(t)))
		}
	}

	history := s.bus.History(limit, types...)
	if history == nil {
		history = []events.Event{}
	}
	writeJSON(w, history)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, []*sessions.Session{})
		return
	}
	list, err := s.store.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*sessions.Session{}
	}
	writeJSON(w, list)
}

// SessionDetail is the body of /api/sessions/{id}.
type SessionDetail struct {
	Session  *sessions.Session  `json:"session"`
	Messages []sessions.Message `json:"messages"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "session store not available", http.StatusServiceUnavailable)
		return
	}
	id := chi.URLParam(r, "id")
	sess, err := s.store.Get(id)
	if err != nil {
		storeError(w, err)
		return
	}
	msgs, err := s.store.LoadMessages(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []sessions.Message{}
	}
	writeJSON(w, SessionDetail{Session: sess, Messages: msgs})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "session store not available", http.StatusServiceUnavailable)
		return
	}
	if err := s.store.Delete(chi.URLParam(r, "id")); err != nil {
		storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessions.ErrInvalidID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, sessions.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// AgentInfo is one entry of /api/agents.
type AgentInfo struct {
	agent.AgentConfig
	Active bool `json:"active"`
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	result := []AgentInfo{}
	if s.agents != nil {
		for _, ac := range s.agents.List() {
			info := AgentInfo{AgentConfig: ac}
			if s.tracker != nil {
				_, info.Active = s.tracker.Active(ac.Name)
			}
			result = append(result, info)
		}
	}
	writeJSON(w, result)
}
