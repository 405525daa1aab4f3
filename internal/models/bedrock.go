package models

import (
	"context"
	"fmt"
	"os"

	einoclaude "github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"

	"github.com/dohr-michael/autodev/internal/config"
)

const defaultBedrockRegion = "us-east-1"

// NewBedrock creates a Claude ChatModel served through AWS Bedrock.
// Credentials come from options (access_key, secret_key, region) or the
// standard AWS environment variables.
func NewBedrock(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	opt := func(key, env string) string {
		if v, ok := cfg.Options[key].(string); ok && v != "" {
			return v
		}
		return os.Getenv(env)
	}

	accessKey := opt("access_key", "AWS_ACCESS_KEY_ID")
	secretKey := opt("secret_key", "AWS_SECRET_ACCESS_KEY")
	profile := opt("profile", "AWS_PROFILE")
	if profile == "" && (accessKey == "" || secretKey == "") {
		return nil, fmt.Errorf("bedrock: AWS credentials not set")
	}

	region := opt("region", "AWS_REGION")
	if region == "" {
		region = defaultBedrockRegion
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	modelConfig := &einoclaude.Config{
		ByBedrock:       true,
		AccessKey:       accessKey,
		SecretAccessKey: secretKey,
		SessionToken:    opt("session_token", "AWS_SESSION_TOKEN"),
		Profile:         profile,
		Region:          region,
		Model:           cfg.Model,
		MaxTokens:       maxTokens,
	}

	s := samplingFrom(cfg.Options)
	modelConfig.Temperature = s.Temperature
	modelConfig.TopP = s.TopP
	modelConfig.TopK = topK32(s.TopK)
	modelConfig.StopSequences = s.Stop

	return einoclaude.NewChatModel(ctx, modelConfig)
}

func topK32(k *int) *int32 {
	if k == nil {
		return nil
	}
	v := int32(*k)
	return &v
}
