package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/dohr-michael/autodev/internal/config"
)

type keyedDriver func(context.Context, config.ProviderConfig, ResolvedAuth) (model.BaseChatModel, error)

// keyedDrivers need credentials from ResolveAuth; bedrock and ollama
// authenticate on their own.
var keyedDrivers = map[string]keyedDriver{
	"anthropic": NewAnthropic,
	"openai":    NewOpenAI,
	"mistral":   NewMistral,
	"gemini":    NewGemini,
}

// CreateModel creates a chat model from a provider config.
func CreateModel(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	driver := strings.ToLower(cfg.Driver)
	switch driver {
	case "bedrock":
		return NewBedrock(ctx, cfg)
	case "ollama":
		return NewOllama(ctx, cfg)
	}

	create, ok := keyedDrivers[driver]
	if !ok {
		return nil, fmt.Errorf("unknown driver: %s", cfg.Driver)
	}
	auth, err := ResolveAuth(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve auth: %w", err)
	}
	return create(ctx, cfg, auth)
}
