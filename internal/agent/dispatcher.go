package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/autodev/internal/events"
	"github.com/dohr-michael/autodev/internal/parser"
)

// Result is the outcome of one dispatch.
type Result struct {
	FinalText string
	Script    string
	HasScript bool
}

// modeHandler consumes a stream for one response mode. It must not call
// Session.Finish; the dispatcher does so on success.
type modeHandler func(d *Dispatcher, ctx context.Context, s *Session, stream *schema.StreamReader[string], sink MessageSink) (Result, error)

var modeHandlers = map[ResponseMode]modeHandler{
	ModeDirect:           (*Dispatcher).handleDirect,
	ModeStreamed:         (*Dispatcher).handleStreamed,
	ModeChunkedCapture:   (*Dispatcher).handleChunkedCapture,
	ModeEmbeddedView:     (*Dispatcher).handleEmbeddedView,
	ModeScriptExtraction: (*Dispatcher).handleScriptExtraction,
}

// Dispatcher routes a token stream to the consumption strategy declared by
// the session's agent.
type Dispatcher struct {
	logger Logger
	pub    events.Publisher
}

// NewDispatcher creates a dispatcher. bus may be nil.
func NewDispatcher(logger Logger, bus *events.Bus) *Dispatcher {
	if logger == nil {
		logger = SlogLogger{}
	}
	return &Dispatcher{
		logger: logger,
		pub:    events.NewPublisher(bus, events.SourceAgent),
	}
}

// Dispatch consumes stream for s, which must be Handling. The stream is
// always closed. On success s is Finished; on cancellation, stream failure
// or an unsupported mode it is left Handling.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, stream *schema.StreamReader[string], sink MessageSink) (Result, error) {
	if stream == nil {
		d.logger.Error(fmt.Sprintf("agent %s: no token stream to dispatch", s.Agent.Name))
		return Result{}, ErrStreamUnavailable
	}
	if !s.claim() {
		stream.Close()
		return Result{}, ErrSessionBusy
	}
	if st := s.State(); st != StateHandling {
		stream.Close()
		return Result{}, fmt.Errorf("%w: dispatch requires handling, session is %s", ErrInvalidTransition, st)
	}

	handler, ok := modeHandlers[s.Agent.Mode]
	if !ok {
		stream.Close()
		d.logger.Error(fmt.Sprintf("agent %s: response mode %s is not supported", s.Agent.Name, s.Agent.Mode))
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedMode, s.Agent.Mode)
	}

	res, err := handler(d, ctx, s, stream, newOnceSink(sink))
	if err != nil {
		return Result{}, err
	}
	if err := s.Finish(); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (d *Dispatcher) handleDirect(ctx context.Context, s *Session, stream *schema.StreamReader[string], sink MessageSink) (Result, error) {
	msg := sink.AddMessage(ProvisionalText, false, "")
	text, err := d.drain(ctx, stream, nil)
	if err != nil {
		return Result{}, err
	}
	sink.HiddenProgressBar()

	final := parser.RemoveSurrounding(text, `"`)
	msg.Update(final)
	msg.ReRender()
	sink.UpdateUI()

	return fencedScript(s.Agent, final), nil
}

func (d *Dispatcher) handleStreamed(ctx context.Context, s *Session, stream *schema.StreamReader[string], sink MessageSink) (Result, error) {
	text, err := d.streamInto(ctx, stream, sink)
	if err != nil {
		return Result{}, err
	}
	return fencedScript(s.Agent, text), nil
}

func (d *Dispatcher) handleChunkedCapture(ctx context.Context, _ *Session, stream *schema.StreamReader[string], sink MessageSink) (Result, error) {
	text, err := d.drain(ctx, stream, nil)
	if err != nil {
		return Result{}, err
	}
	sink.HiddenProgressBar()
	sink.RemoveLastMessage()
	sink.SetInput(text)
	sink.MoveCursorToStart()
	sink.UpdateUI()
	return Result{FinalText: text}, nil
}

func (d *Dispatcher) handleEmbeddedView(ctx context.Context, s *Session, stream *schema.StreamReader[string], sink MessageSink) (Result, error) {
	text, err := d.drain(ctx, stream, nil)
	if err != nil {
		return Result{}, err
	}
	sink.HiddenProgressBar()
	sink.AppendEmbeddedView(text, ViewContext{Agent: s.Agent.Name, SessionID: s.ID})
	d.pub.Publish(ctx, events.EmbeddedViewPayload{Content: text, Agent: s.Agent.Name})
	sink.UpdateUI()
	return Result{FinalText: text}, nil
}

func (d *Dispatcher) handleScriptExtraction(ctx context.Context, _ *Session, stream *schema.StreamReader[string], sink MessageSink) (Result, error) {
	text, err := d.streamInto(ctx, stream, sink)
	if err != nil {
		return Result{}, err
	}
	return Result{FinalText: text, Script: text, HasScript: true}, nil
}

// streamInto renders fragments into a fresh message as they arrive.
func (d *Dispatcher) streamInto(ctx context.Context, stream *schema.StreamReader[string], sink MessageSink) (string, error) {
	msg := sink.AddMessage("", false, "")
	text, err := d.drain(ctx, stream, msg.Append)
	if err != nil {
		return "", err
	}
	sink.HiddenProgressBar()
	sink.UpdateUI()
	return text, nil
}

// drain assembles the stream, mirroring it on the bus as assistant.stream
// events. Cancellation is reported as ErrCancelled.
func (d *Dispatcher) drain(ctx context.Context, stream *schema.StreamReader[string], onChunk func(string)) (string, error) {
	d.pub.Publish(ctx, events.AssistantStreamPayload{Phase: events.StreamPhaseStart})

	idx := 0
	text, err := parser.Drain(ctx, stream, func(chunk string) {
		idx++
		d.pub.Publish(ctx, events.AssistantStreamPayload{
			Phase:   events.StreamPhaseDelta,
			Content: chunk,
			Index:   idx,
		})
		if onChunk != nil {
			onChunk(chunk)
		}
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		return "", fmt.Errorf("read token stream: %w", err)
	}

	d.pub.Publish(ctx, events.AssistantStreamPayload{Phase: events.StreamPhaseEnd, Index: idx})
	return text, nil
}

// fencedScript returns the body of the first fenced block when it is tagged
// with the agent's scripting language.
func fencedScript(agent AgentConfig, text string) Result {
	res := Result{FinalText: text}
	if block, ok := parser.ParseCode(text); ok && agent.IsScriptLanguage(block.Language) {
		res.Script = block.Text
		res.HasScript = true
	}
	return res
}
