package models

import (
	"context"
	"net/http"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/dohr-michael/autodev/internal/config"
)

// openAIProfile holds per-vendor defaults for OpenAI-compatible APIs.
type openAIProfile struct {
	Name    string
	BaseURL string
	Model   string
	Timeout time.Duration
}

var (
	openAIDefaults  = openAIProfile{Name: "openai", Timeout: 60 * time.Second}
	mistralDefaults = openAIProfile{
		Name:    "mistral",
		BaseURL: "https://api.mistral.ai/v1",
		Model:   "mistral-small-latest",
		Timeout: 5 * time.Minute,
	}
)

// NewOpenAI creates an OpenAI ChatModel.
func NewOpenAI(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.BaseChatModel, error) {
	return newOpenAICompatible(ctx, cfg, auth, openAIDefaults)
}

// NewMistral creates a Mistral AI ChatModel via its OpenAI-compatible API.
func NewMistral(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.BaseChatModel, error) {
	return newOpenAICompatible(ctx, cfg, auth, mistralDefaults)
}

func newOpenAICompatible(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth, p openAIProfile) (model.BaseChatModel, error) {
	s := samplingFrom(cfg.Options)
	modelConfig := &einoopenai.ChatModelConfig{
		APIKey:      auth.Value,
		Model:       modelOr(cfg, p.Model),
		BaseURL:     p.BaseURL,
		Timeout:     timeoutOr(cfg, p.Timeout),
		Temperature: s.Temperature,
		TopP:        s.TopP,
		Stop:        s.Stop,
	}

	if cfg.BaseURL != "" {
		modelConfig.BaseURL = cfg.BaseURL
		// Self-hosted gateways answer outages with plain-text pages.
		modelConfig.HTTPClient = &http.Client{
			Timeout:   modelConfig.Timeout,
			Transport: newJSONGuard(p.Name, http.DefaultTransport),
		}
	}

	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		modelConfig.MaxCompletionTokens = &maxTokens
	}

	return einoopenai.NewChatModel(ctx, modelConfig)
}
