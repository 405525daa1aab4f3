package models

import (
	"context"
	"fmt"

	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/dohr-michael/autodev/internal/config"
)

const defaultGeminiModel = "gemini-2.5-flash"

// NewGemini creates a Gemini ChatModel backed by the genai client.
func NewGemini(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.BaseChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  auth.Value,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	modelConfig := &einogemini.Config{
		Client: client,
		Model:  modelOr(cfg, defaultGeminiModel),
	}

	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		modelConfig.MaxTokens = &maxTokens
	}

	s := samplingFrom(cfg.Options)
	modelConfig.Temperature = s.Temperature
	modelConfig.TopP = s.TopP
	modelConfig.TopK = topK32(s.TopK)

	return einogemini.NewChatModel(ctx, modelConfig)
}
