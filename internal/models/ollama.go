package models

import (
	"context"
	"net/http"
	"time"

	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"

	"github.com/dohr-michael/autodev/internal/config"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// NewOllama creates an Ollama ChatModel. Local models load slowly, so the
// default timeout is generous.
func NewOllama(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	timeout := timeoutOr(cfg, 300*time.Second)

	s := samplingFrom(cfg.Options)
	opts := &einoollama.Options{
		NumPredict: cfg.MaxTokens,
		Stop:       s.Stop,
	}
	// NumCtx is promoted from the embedded runner options.
	opts.NumCtx = s.NumCtx
	if s.NumPredict > 0 {
		opts.NumPredict = s.NumPredict
	}
	if s.Temperature != nil {
		opts.Temperature = *s.Temperature
	}
	if s.TopP != nil {
		opts.TopP = *s.TopP
	}
	if s.TopK != nil {
		opts.TopK = *s.TopK
	}

	return einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   cfg.Model,
		Timeout: timeout,
		Options: opts,
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: newJSONGuard("ollama", http.DefaultTransport),
		},
	})
}
