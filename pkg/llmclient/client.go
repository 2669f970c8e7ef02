// Package llmclient wraps the OpenAI and Anthropic Go SDKs behind one
// provider-agnostic streaming interface: a channel of typed Chunk values,
// with both SDKs called in-process rather than over an RPC bridge.
package llmclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/quarryhq/quarry/pkg/models"
)

// Role mirrors llm_client.go's role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is the provider-agnostic conversation turn.
type Message struct {
	Role    string
	Content string
}

// GenerateInput is one streaming completion request.
type GenerateInput struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Chunk is the streaming unit, mirroring llm_client.go's closed Chunk
// interface: one struct per kind, dispatched by chunkType().
type Chunk interface {
	chunkType() ChunkType
}

type ChunkType string

const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeUsage ChunkType = "usage"
	ChunkTypeError ChunkType = "error"
)

type TextChunk struct{ Content string }
type UsageChunk struct{ InputTokens, OutputTokens int }
type ErrorChunk struct {
	Message   string
	Retryable bool
}

func (c *TextChunk) chunkType() ChunkType  { return ChunkTypeText }
func (c *UsageChunk) chunkType() ChunkType { return ChunkTypeUsage }
func (c *ErrorChunk) chunkType() ChunkType { return ChunkTypeError }

// Client is the provider-agnostic entry point. One Client wraps one
// models.LLMConfig (one provider + model + credential).
type Client interface {
	// Generate streams a completion; the channel closes when the stream
	// ends, with a final ErrorChunk if the stream failed mid-flight.
	Generate(ctx context.Context, input GenerateInput) (<-chan Chunk, error)

	// Embed returns one embedding vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	Close() error
}

// New builds a Client for the given LLMConfig, dispatching on Provider.
func New(cfg models.LLMConfig, apiKey string) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg, apiKey), nil
	case "anthropic":
		return newAnthropicClient(cfg, apiKey), nil
	default:
		return nil, fmt.Errorf("llmclient: unsupported provider %q", cfg.Provider)
	}
}

// Complete drains Generate into a single string.
func Complete(ctx context.Context, client Client, prompt string) (string, error) {
	ch, err := client.Generate(ctx, GenerateInput{
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for chunk := range ch {
		switch c := chunk.(type) {
		case *TextChunk:
			sb.WriteString(c.Content)
		case *ErrorChunk:
			return "", fmt.Errorf("llmclient: generate: %s", c.Message)
		}
	}
	return sb.String(), nil
}

// AsCompleter adapts a Client to pkg/hashing.Completer's single-method
// shape (a method value closing over client), letting the indexer wire an
// llmclient.Client into hashing.NewLLMSummarizer without either package
// importing the other.
type AsCompleter struct {
	Client Client
}

func (a AsCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return Complete(ctx, a.Client, prompt)
}
