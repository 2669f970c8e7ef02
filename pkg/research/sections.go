package research

import (
	"context"
	"fmt"

	"github.com/quarryhq/quarry/pkg/llmclient"
	"github.com/quarryhq/quarry/pkg/retrieval"
)

// nodeSections retrieves and writes one section per outline entry, in the
// outline's order. Each section's surviving source groups are remembered on
// its SectionResult for generate_further_questions to consume later, and
// every section's groups are folded into state.Groups so a single run-wide
// citation set is available for validation.
func nodeSections(ctx context.Context, state *State, deps *Deps) error {
	for _, section := range state.Outline {
		result, err := writeSection(ctx, state, deps, section)
		if err != nil {
			return fmt.Errorf("section %q: %w", section.SectionID, err)
		}
		state.Sections = append(state.Sections, *result)
		state.Groups = append(state.Groups, result.Groups...)
	}
	return nil
}

func writeSection(ctx context.Context, state *State, deps *Deps, section OutlineSection) (*SectionResult, error) {
	fanout, err := retrieval.Fanout(ctx, section.Questions, state.Targets, deps.TopK, state.SearchMode, deps.MaxConcurrency, nil, func(msg string) {
		deps.emit(TerminalInfoEvent{Message: msg})
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	chunks := fanout.Chunks
	if deps.Reranker != nil && len(chunks) > 0 {
		chunks, err = deps.Reranker.Rerank(ctx, section.SectionTitle, chunks)
		if err != nil {
			return nil, fmt.Errorf("rerank: %w", err)
		}
	}
	if deps.Packer != nil {
		chunks = retrieval.Pack(deps.Packer, section.SectionTitle, chunks, deps.ContextWindow, deps.ReservedOutput)
	}

	deps.emit(SourcesEvent{Groups: fanout.Groups})

	system := buildSystemPrompt(len(chunks) > 0, state.CitationsEnabled, state.CustomInstructions, state.Language)
	user := fmt.Sprintf("Write the %q section of a research report.\n\n%s", section.SectionTitle, formatContext(chunks))

	text, err := streamCompletion(ctx, deps, deps.LongContextLLM, system, user)
	if err != nil {
		return nil, fmt.Errorf("write section prose: %w", err)
	}

	if state.CitationsEnabled {
		if invalid := ValidateCitations(text, fanout.Groups); len(invalid) > 0 {
			deps.emit(ErrorEvent{Message: fmt.Sprintf("section %q cited unknown source ids: %v", section.SectionID, invalid), Fatal: false})
		}
	}

	return &SectionResult{
		SectionID: section.SectionID,
		Title:     section.SectionTitle,
		Text:      text,
		Groups:    fanout.Groups,
	}, nil
}

// streamCompletion runs one streaming completion, emitting a TextChunkEvent
// per text delta as it arrives, and returns the concatenated text.
func streamCompletion(ctx context.Context, deps *Deps, client llmclient.Client, system, user string) (string, error) {
	ch, err := client.Generate(ctx, llmclient.GenerateInput{
		Messages: []llmclient.Message{
			{Role: llmclient.RoleSystem, Content: system},
			{Role: llmclient.RoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	var text string
	for chunk := range ch {
		switch c := chunk.(type) {
		case *llmclient.TextChunk:
			text += c.Content
			deps.emit(TextChunkEvent{Delta: c.Content})
		case *llmclient.ErrorChunk:
			return "", fmt.Errorf("%s", c.Message)
		}
	}
	return text, nil
}
