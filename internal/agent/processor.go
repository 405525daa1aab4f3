package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/autodev/internal/events"
	"github.com/dohr-michael/autodev/internal/interpreter"
)

// History persists chat turns. Load returns the prior messages of a
// conversation; RecordTurn appends one user/assistant exchange.
type History interface {
	Load(sessionID string) ([]*schema.Message, error)
	RecordTurn(sessionID, agent, prompt, reply string) error
}

// Bridge runs scripts extracted from agent responses.
type Bridge interface {
	Execute(ctx context.Context, sc interpreter.ScriptContext) error
}

// ChatRequest is a user chat turn addressed to an agent.
type ChatRequest struct {
	Prompt    string
	Agent     string // empty = default agent
	SessionID string // conversation for history; empty = no history
}

// ProcessorConfig wires a ChatProcessor.
type ProcessorConfig struct {
	Agents   *Registry
	Executor Executor
	Bridge   Bridge  // optional
	History  History // optional
	Bus      *events.Bus
	Logger   Logger
	Tracker  *Tracker // optional, shared between processors
}

// ChatProcessor drives one agent invocation per chat turn: it obtains the
// token stream, moves the session through its lifecycle, dispatches the
// stream and hands any extracted script to the bridge.
type ChatProcessor struct {
	agents     *Registry
	executor   Executor
	bridge     Bridge
	history    History
	tracker    *Tracker
	dispatcher *Dispatcher
	logger     Logger
	pub        events.Publisher
}

// NewChatProcessor creates a ChatProcessor.
func NewChatProcessor(cfg ProcessorConfig) *ChatProcessor {
	logger := cfg.Logger
	if logger == nil {
		logger = SlogLogger{}
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = NewTracker()
	}
	return &ChatProcessor{
		agents:     cfg.Agents,
		executor:   cfg.Executor,
		bridge:     cfg.Bridge,
		history:    cfg.History,
		tracker:    tracker,
		dispatcher: NewDispatcher(logger, cfg.Bus),
		logger:     logger,
		pub:        events.NewPublisher(cfg.Bus, events.SourceAgent),
	}
}

// HandleChat runs one chat turn against sink.
func (p *ChatProcessor) HandleChat(ctx context.Context, req ChatRequest, sink MessageSink) (Result, error) {
	sink.AddMessage(req.Prompt, true, req.Prompt)

	ac, err := p.agents.Resolve(req.Agent)
	if err != nil {
		p.logger.Error(err.Error())
		return Result{}, err
	}

	if req.SessionID != "" {
		ctx = events.ContextWithSessionID(ctx, req.SessionID)
	}
	p.pub.Publish(ctx, events.UserMessagePayload{Content: req.Prompt, Agent: ac.Name})

	session := NewSession(ac, WithStateObserver(func(s *Session, from, to State) {
		p.pub.Publish(ctx, events.SessionStatePayload{Agent: s.Agent.Name, From: from.String(), To: to.String()})
	}))

	release, err := p.tracker.Acquire(session)
	if err != nil {
		return Result{}, err
	}
	defer release()

	prompt := strings.TrimSpace(req.Prompt)
	history := p.loadHistory(req.SessionID)

	stream, err := p.executor.Execute(ctx, Request{Prompt: prompt, Agent: ac, History: history})
	if err != nil || stream == nil {
		if stream != nil {
			stream.Close()
		}
		msg := fmt.Sprintf("agent %s: no response stream", ac.Name)
		if err != nil {
			msg += ": " + err.Error()
		}
		p.logger.Error(msg)
		p.pub.Publish(ctx, events.AssistantMessagePayload{Agent: ac.Name, Error: msg})
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrStreamUnavailable, err)
		}
		return Result{}, ErrStreamUnavailable
	}

	if err := session.Begin(); err != nil {
		stream.Close()
		return Result{}, err
	}

	res, err := p.dispatcher.Dispatch(ctx, session, stream, sink)
	if err != nil {
		if !errors.Is(err, ErrCancelled) {
			p.pub.Publish(ctx, events.AssistantMessagePayload{Agent: ac.Name, Mode: ac.Mode.String(), Error: err.Error()})
		}
		return Result{}, err
	}

	p.recordTurn(req.SessionID, ac.Name, prompt, res.FinalText)
	p.pub.Publish(ctx, events.AssistantMessagePayload{
		Content: res.FinalText,
		Agent:   ac.Name,
		Mode:    ac.Mode.String(),
		Script:  res.Script,
	})

	if res.HasScript && p.bridge != nil {
		sc := interpreter.ScriptContext{
			Agent:     ac.Name,
			Language:  ac.Language,
			Script:    res.Script,
			SessionID: req.SessionID,
		}
		if err := p.bridge.Execute(ctx, sc); err != nil {
			return res, fmt.Errorf("execute %s script: %w", ac.Language, err)
		}
	}

	return res, nil
}

// Tracker returns the processor's per-agent tracker.
func (p *ChatProcessor) Tracker() *Tracker { return p.tracker }

// Agents returns the agent registry.
func (p *ChatProcessor) Agents() *Registry { return p.agents }

func (p *ChatProcessor) loadHistory(sessionID string) []*schema.Message {
	if p.history == nil || sessionID == "" {
		return nil
	}
	msgs, err := p.history.Load(sessionID)
	if err != nil {
		slog.Warn("load chat history", "session_id", sessionID, "error", err)
		return nil
	}
	return msgs
}

func (p *ChatProcessor) recordTurn(sessionID, agent, prompt, reply string) {
	if p.history == nil || sessionID == "" {
		return
	}
	if err := p.history.RecordTurn(sessionID, agent, prompt, reply); err != nil {
		slog.Warn("record chat turn", "session_id", sessionID, "error", err)
	}
}
