// Package callbacks provides Eino callback handlers that bridge to the event bus.
package callbacks

import (
	"context"
	"errors"
	"io"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	ub "github.com/cloudwego/eino/utils/callbacks"

	"github.com/dohr-michael/autodev/internal/events"
)

const maxErrorLen = 1000

type startKey struct{}

// NewEventBusHandler creates a callback handler that publishes LLM call events to the bus.
func NewEventBusHandler(bus *events.Bus, source events.EventSource) callbacks.Handler {
	if source == "" {
		source = events.SourceAgent
	}
	pub := events.NewPublisher(bus, source)

	modelHandler := &ub.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *callbacks.RunInfo, input *model.CallbackInput) context.Context {
			pub.Publish(ctx, events.LLMCallPayload{
				Phase:        "request",
				Model:        info.Name,
				Provider:     info.Type,
				MessageCount: len(input.Messages),
			})
			return context.WithValue(ctx, startKey{}, time.Now())
		},

		OnEnd: func(ctx context.Context, info *callbacks.RunInfo, output *model.CallbackOutput) context.Context {
			payload := responsePayload(ctx, info)
			addUsage(&payload, output)
			pub.Publish(ctx, payload)
			return ctx
		},

		OnEndWithStreamOutput: func(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[*model.CallbackOutput]) context.Context {
			go func() {
				defer output.Close()
				payload := responsePayload(ctx, info)
				for {
					chunk, err := output.Recv()
					if errors.Is(err, io.EOF) {
						break
					}
					if err != nil {
						payload.Phase = "error"
						payload.Error = clip(err.Error(), maxErrorLen)
						break
					}
					addUsage(&payload, chunk)
				}
				payload.Duration = elapsed(ctx)
				pub.Publish(ctx, payload)
			}()
			return ctx
		},

		OnError: func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			pub.Publish(ctx, events.LLMCallPayload{
				Phase:    "error",
				Model:    info.Name,
				Provider: info.Type,
				Duration: elapsed(ctx),
				Error:    clip(err.Error(), maxErrorLen),
			})
			return ctx
		},
	}

	return ub.NewHandlerHelper().
		ChatModel(modelHandler).
		Handler()
}

func responsePayload(ctx context.Context, info *callbacks.RunInfo) events.LLMCallPayload {
	return events.LLMCallPayload{
		Phase:    "response",
		Model:    info.Name,
		Provider: info.Type,
		Duration: elapsed(ctx),
	}
}

// addUsage keeps the latest reported token usage; streaming providers report
// it cumulatively on the final chunk.
func addUsage(p *events.LLMCallPayload, output *model.CallbackOutput) {
	if output == nil {
		return
	}
	if output.TokenUsage != nil {
		p.TokensInput = output.TokenUsage.PromptTokens
		p.TokensOutput = output.TokenUsage.CompletionTokens
		return
	}
	if output.Message != nil && output.Message.ResponseMeta != nil && output.Message.ResponseMeta.Usage != nil {
		p.TokensInput = output.Message.ResponseMeta.Usage.PromptTokens
		p.TokensOutput = output.Message.ResponseMeta.Usage.CompletionTokens
	}
}

func elapsed(ctx context.Context) time.Duration {
	if start, ok := ctx.Value(startKey{}).(time.Time); ok {
		return time.Since(start)
	}
	return 0
}

// clip shortens s to at most limit bytes without splitting a rune.
func clip(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
