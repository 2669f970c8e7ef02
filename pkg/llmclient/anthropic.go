package llmclient

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/quarryhq/quarry/pkg/models"
)

// anthropicClient has no native embeddings endpoint; Embed returns an
// explicit error rather than silently degrading, since a SearchSpace that
// configures Anthropic for its long-context slot must still configure a
// provider with an embedding_model for its embedding slot (Design Notes).
type anthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func newAnthropicClient(cfg models.LLMConfig, apiKey string) *anthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := int64(4096)
	if v, ok := cfg.Params["max_tokens"].(float64); ok && v > 0 {
		maxTokens = int64(v)
	}
	return &anthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

func (c *anthropicClient) Generate(ctx context.Context, input GenerateInput) (<-chan Chunk, error) {
	var system string
	messages := make([]anthropic.MessageParam, 0, len(input.Messages))
	for _, m := range input.Messages {
		switch m.Role {
		case RoleSystem:
			system = m.Content
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	maxTokens := c.maxTokens
	if input.MaxTokens > 0 {
		maxTokens = int64(input.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := c.client.Messages.NewStreaming(ctx, params)

	out := make(chan Chunk, 8)
	go func() {
		defer close(out)
		var message anthropic.Message
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				out <- &ErrorChunk{Message: err.Error(), Retryable: false}
				return
			}
			switch eventVariant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if textDelta, ok := eventVariant.Delta.AsAny().(anthropic.TextDelta); ok {
					out <- &TextChunk{Content: textDelta.Text}
				}
			case anthropic.MessageDeltaEvent:
				out <- &UsageChunk{
					InputTokens:  int(message.Usage.InputTokens),
					OutputTokens: int(message.Usage.OutputTokens),
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- &ErrorChunk{Message: err.Error(), Retryable: true}
		}
	}()
	return out, nil
}

func (c *anthropicClient) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errUnsupportedEmbedding
}

func (c *anthropicClient) Close() error { return nil }
