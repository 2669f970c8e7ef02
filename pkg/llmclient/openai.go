package llmclient

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/quarryhq/quarry/pkg/models"
)

type openAIClient struct {
	client         openai.Client
	model          string
	embeddingModel string
}

func newOpenAIClient(cfg models.LLMConfig, apiKey string) *openAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	embeddingModel, _ := cfg.Params["embedding_model"].(string)
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}
	return &openAIClient{
		client:         openai.NewClient(opts...),
		model:          cfg.Model,
		embeddingModel: embeddingModel,
	}
}

func (c *openAIClient) Generate(ctx context.Context, input GenerateInput) (<-chan Chunk, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(input.Messages))
	for _, m := range input.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if input.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(input.MaxTokens))
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)

	out := make(chan Chunk, 8)
	go func() {
		defer close(out)
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if content := chunk.Choices[0].Delta.Content; content != "" {
				out <- &TextChunk{Content: content}
			}
		}
		if err := stream.Err(); err != nil {
			out <- &ErrorChunk{Message: err.Error(), Retryable: true}
		}
	}()
	return out, nil
}

func (c *openAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (c *openAIClient) Close() error { return nil }
