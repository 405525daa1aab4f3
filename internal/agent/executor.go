package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/autodev/internal/models"
)

// Request is one chat turn sent to an agent.
type Request struct {
	Prompt  string
	Agent   AgentConfig
	History []*schema.Message
}

// Executor issues a request and returns its token stream. A nil stream with
// a nil error is treated the same as an error: no stream is available.
type Executor interface {
	Execute(ctx context.Context, req Request) (*schema.StreamReader[string], error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req Request) (*schema.StreamReader[string], error)

func (f ExecutorFunc) Execute(ctx context.Context, req Request) (*schema.StreamReader[string], error) {
	return f(ctx, req)
}

// ModelExecutor streams requests from a chat model in the registry. The
// agent's Provider selects the model; empty means the chat role.
type ModelExecutor struct {
	models   *models.Registry
	composer *PromptComposer
	handlers []callbacks.Handler
}

// NewModelExecutor creates an executor. handlers receive model callbacks
// for every invocation.
func NewModelExecutor(reg *models.Registry, handlers ...callbacks.Handler) *ModelExecutor {
	return &ModelExecutor{
		models:   reg,
		composer: NewPromptComposer(),
		handlers: handlers,
	}
}

func (e *ModelExecutor) Execute(ctx context.Context, req Request) (*schema.StreamReader[string], error) {
	provider := req.Agent.Provider
	if provider == "" {
		provider = e.models.NameForRole(models.RoleChat)
	}
	chatModel, err := e.models.Get(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", req.Agent.Name, err)
	}

	system := e.composer.Compose(PromptContext{
		Agent:        req.Agent,
		Tier:         ResolveTier(e.models.ContextWindow(provider)),
		MessageCount: len(req.History),
	})

	msgs := make([]*schema.Message, 0, len(req.History)+2)
	if system != "" {
		msgs = append(msgs, schema.SystemMessage(system))
	}
	msgs = append(msgs, req.History...)
	msgs = append(msgs, schema.UserMessage(req.Prompt))

	if len(e.handlers) > 0 {
		ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
			Name:      provider,
			Component: components.ComponentOfChatModel,
		}, e.handlers...)
	}

	out, err := chatModel.Stream(ctx, msgs)
	if err != nil {
		return nil, models.HandleError(err)
	}
	return models.TextStream(out), nil
}
