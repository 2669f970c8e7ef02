package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/quarryhq/quarry/pkg/models"
)

type fakeClient struct {
	chunks []Chunk
	err    error
}

func (f *fakeClient) Generate(_ context.Context, _ GenerateInput) (<-chan Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan Chunk, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (f *fakeClient) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 2, 3}
	}
	return vectors, nil
}

func (f *fakeClient) Close() error { return nil }

func TestCompleteConcatenatesTextChunks(t *testing.T) {
	client := &fakeClient{chunks: []Chunk{
		&TextChunk{Content: "hello "},
		&TextChunk{Content: "world"},
	}}
	out, err := Complete(context.Background(), client, "prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "hello world" {
		t.Fatalf("expected concatenated text, got %q", out)
	}
}

func TestCompletePropagatesErrorChunk(t *testing.T) {
	client := &fakeClient{chunks: []Chunk{&ErrorChunk{Message: "rate limited"}}}
	_, err := Complete(context.Background(), client, "prompt")
	if err == nil {
		t.Fatal("expected error from ErrorChunk")
	}
}

func TestAsCompleterSatisfiesHashingCompleterShape(t *testing.T) {
	client := &fakeClient{chunks: []Chunk{&TextChunk{Content: "summary"}}}
	completer := AsCompleter{Client: client}
	out, err := completer.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "summary" {
		t.Fatalf("expected summary text, got %q", out)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(models.LLMConfig{Provider: "not-a-real-provider"}, "key")
	if !errors.Is(err, err) || err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestNewBuildsOpenAIAndAnthropicClients(t *testing.T) {
	if _, err := New(models.LLMConfig{Provider: "openai", Model: "gpt-4o-mini"}, "key"); err != nil {
		t.Fatalf("expected openai client to build, got %v", err)
	}
	if _, err := New(models.LLMConfig{Provider: "anthropic", Model: "claude-3-5-sonnet-latest"}, "key"); err != nil {
		t.Fatalf("expected anthropic client to build, got %v", err)
	}
}
