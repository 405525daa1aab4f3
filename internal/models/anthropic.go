package models

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/autodev/internal/config"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-6"
	defaultAnthropicMaxTokens = 4096
)

// AnthropicChatModel is a text-only chat model on top of Anthropic's SDK.
// It supports both API keys and OAuth bearer tokens.
type AnthropicChatModel struct {
	client    anthropic.Client
	modelName string
	maxTokens int
	sampling  sampling
}

// NewAnthropic creates a new Anthropic chat model.
func NewAnthropic(_ context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.BaseChatModel, error) {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	var opts []option.RequestOption

	// API key auth (x-api-key header) vs Bearer token auth (Authorization header)
	switch auth.Kind {
	case AuthBearerToken:
		opts = append(opts, option.WithAuthToken(auth.Value))
	default:
		opts = append(opts, option.WithAPIKey(auth.Value))
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, option.WithRequestTimeout(timeoutOr(cfg, 60*time.Second)))

	return &AnthropicChatModel{
		client:    anthropic.NewClient(opts...),
		modelName: modelOr(cfg, defaultAnthropicModel),
		maxTokens: maxTokens,
		sampling:  samplingFrom(cfg.Options),
	}, nil
}

func (m *AnthropicChatModel) GetType() string { return "Anthropic" }

func (m *AnthropicChatModel) IsCallbacksEnabled() bool { return true }

// start opens the callback run shared by Generate and Stream.
func (m *AnthropicChatModel) start(ctx context.Context, messages []*schema.Message) (context.Context, *model.Config) {
	ctx = callbacks.EnsureRunInfo(ctx, m.GetType(), components.ComponentOfChatModel)
	cfg := &model.Config{Model: m.modelName, MaxTokens: m.maxTokens}
	return callbacks.OnStart(ctx, &model.CallbackInput{Messages: messages, Config: cfg}), cfg
}

func (m *AnthropicChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (outMsg *schema.Message, err error) {
	ctx, cbConfig := m.start(ctx, messages)
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	resp, err := m.client.Messages.New(ctx, m.buildParams(messages, opts))
	if err != nil {
		return nil, HandleError(err)
	}

	outMsg = convertResponse(resp)
	callbacks.OnEnd(ctx, &model.CallbackOutput{
		Message:    outMsg,
		Config:     cbConfig,
		TokenUsage: toModelTokenUsage(outMsg.ResponseMeta.Usage),
	})
	return outMsg, nil
}

// Stream emits one message per text delta and a final, empty message
// carrying token usage.
func (m *AnthropicChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	ctx, cbConfig := m.start(ctx, messages)

	stream := m.client.Messages.NewStreaming(ctx, m.buildParams(messages, opts))

	sr, sw := schema.Pipe[*model.CallbackOutput](10)
	go streamResponse(ctx, stream, sw, cbConfig)

	_, nsr := callbacks.OnEndWithStreamOutput(ctx, sr)

	return schema.StreamReaderWithConvert(nsr,
		func(src *model.CallbackOutput) (*schema.Message, error) {
			if src.Message == nil {
				return nil, schema.ErrNoValue
			}
			return src.Message, nil
		}), nil
}

// buildParams maps eino messages onto the Messages API. Call options
// override the configured sampling. Consecutive messages of the same role
// are merged because the API rejects non-alternating turns.
func (m *AnthropicChatModel) buildParams(messages []*schema.Message, opts []model.Option) anthropic.MessageNewParams {
	options := model.GetCommonOptions(&model.Options{
		MaxTokens:   &m.maxTokens,
		Temperature: m.sampling.Temperature,
		TopP:        m.sampling.TopP,
		Stop:        m.sampling.Stop,
	}, opts...)

	maxTokens := m.maxTokens
	if options.MaxTokens != nil && *options.MaxTokens > 0 {
		maxTokens = *options.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:         anthropic.Model(m.modelName),
		MaxTokens:     int64(maxTokens),
		StopSequences: options.Stop,
	}
	if options.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*options.Temperature))
	}
	if options.TopP != nil {
		params.TopP = anthropic.Float(float64(*options.TopP))
	}
	if m.sampling.TopK != nil {
		params.TopK = anthropic.Int(int64(*m.sampling.TopK))
	}

	var (
		role schema.RoleType
		text strings.Builder
	)
	flush := func() {
		if text.Len() == 0 {
			return
		}
		block := anthropic.NewTextBlock(text.String())
		if role == schema.Assistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
		text.Reset()
	}

	for _, msg := range messages {
		if msg.Role == schema.System {
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
			continue
		}
		r := schema.User
		if msg.Role == schema.Assistant {
			r = schema.Assistant
		}
		if r != role {
			flush()
			role = r
		} else if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(msg.Content)
	}
	flush()

	return params
}

func convertResponse(resp *anthropic.Message) *schema.Message {
	result := &schema.Message{
		Role: schema.Assistant,
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
			},
			FinishReason: finishReason(resp.StopReason),
		},
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	result.Content = sb.String()

	return result
}

func finishReason(r anthropic.StopReason) string {
	if r == anthropic.StopReasonMaxTokens {
		return "length"
	}
	return "stop"
}

func streamResponse(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], writer *schema.StreamWriter[*model.CallbackOutput], cfg *model.Config) {
	defer writer.Close()

	var usage schema.TokenUsage

	send := func(msg *schema.Message, tu *model.TokenUsage, err error) bool {
		return writer.Send(&model.CallbackOutput{
			Message:    msg,
			Config:     cfg,
			TokenUsage: tu,
		}, err)
	}

	// The final chunk carries usage only; its empty content keeps the
	// concatenated text identical to the sum of deltas.
	final := func() *schema.Message {
		return &schema.Message{
			Role: schema.Assistant,
			ResponseMeta: &schema.ResponseMeta{
				Usage:        &usage,
				FinishReason: "stop",
			},
		}
	}

	for stream.Next() {
		select {
		case <-ctx.Done():
			send(nil, nil, ctx.Err())
			return
		default:
		}

		event := stream.Current()

		switch event.Type {
		case "message_start":
			usage.PromptTokens = int(event.Message.Usage.InputTokens)

		case "content_block_delta":
			if event.Delta.Type == "text_delta" {
				if send(&schema.Message{Role: schema.Assistant, Content: event.Delta.Text}, nil, nil) {
					return
				}
			}

		case "message_delta":
			usage.CompletionTokens = int(event.Usage.OutputTokens)

		case "message_stop":
			send(final(), toModelTokenUsage(&usage), nil)
			return
		}
	}

	if err := stream.Err(); err != nil {
		send(nil, nil, HandleError(err))
	}
}

func toModelTokenUsage(u *schema.TokenUsage) *model.TokenUsage {
	if u == nil {
		return nil
	}
	return &model.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.PromptTokens + u.CompletionTokens,
	}
}

var _ model.BaseChatModel = (*AnthropicChatModel)(nil)
