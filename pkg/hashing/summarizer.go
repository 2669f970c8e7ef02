package hashing

import (
	"context"
	"fmt"
)

// Completer is the narrow slice of pkg/llmclient's interface LLMSummarizer
// needs — a single-shot prompt completion — kept here rather than importing
// pkg/llmclient directly to avoid a dependency cycle (llmclient depends on
// nothing in pkg/hashing, but indexer wires both together).
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces the text pkg/store persists as a Document's Content
// when a long-context LLM is configured for the owning SearchSpace (the
// full text still feeds chunk embeddings; Content itself is the summary).
type Summarizer interface {
	Summarize(ctx context.Context, title, docType, content string) (string, error)
}

// LLMSummarizer asks a long-context model to summarize, prepending source
// metadata so the model has the title/type for context.
type LLMSummarizer struct {
	completer Completer
}

func NewLLMSummarizer(completer Completer) *LLMSummarizer {
	return &LLMSummarizer{completer: completer}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, title, docType, content string) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize the following %s titled %q. Preserve concrete facts, names, and numbers. Content:\n\n%s",
		docType, title, content,
	)
	summary, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("hashing: llm summarize: %w", err)
	}
	return summary, nil
}

// TemplateSummarizer is the deterministic fallback used when a SearchSpace
// has no long-context LLM configured: "{type} — {title}\n{first N chars}".
type TemplateSummarizer struct {
	MaxContentChars int
}

func NewTemplateSummarizer(maxContentChars int) *TemplateSummarizer {
	if maxContentChars <= 0 {
		maxContentChars = 500
	}
	return &TemplateSummarizer{MaxContentChars: maxContentChars}
}

func (s *TemplateSummarizer) Summarize(_ context.Context, title, docType, content string) (string, error) {
	truncated := content
	if len(truncated) > s.MaxContentChars {
		truncated = truncated[:s.MaxContentChars]
	}
	return fmt.Sprintf("%s — %s\n%s", docType, title, truncated), nil
}
