package research

import (
	"context"
	"fmt"

	"github.com/quarryhq/quarry/pkg/retrieval"
)

// nodeQnA handles the direct-answer branch: retrieve over both the
// reformulated and raw user queries plus any user-selected documents,
// rerank, pack, then stream one answer.
func nodeQnA(ctx context.Context, state *State, deps *Deps) error {
	questions := []string{state.ReformulatedQuery}
	if state.UserQuery != state.ReformulatedQuery {
		questions = append(questions, state.UserQuery)
	}

	fanout, err := retrieval.Fanout(ctx, questions, state.Targets, deps.TopK, state.SearchMode, deps.MaxConcurrency, state.UserSelectedGroups, func(msg string) {
		deps.emit(TerminalInfoEvent{Message: msg})
	})
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}
	deps.emit(SourcesEvent{Groups: fanout.Groups})

	chunks := fanout.Chunks
	if deps.Reranker != nil && len(chunks) > 0 {
		chunks, err = deps.Reranker.Rerank(ctx, state.UserQuery, chunks)
		if err != nil {
			return fmt.Errorf("rerank: %w", err)
		}
	}
	if deps.Packer != nil {
		chunks = retrieval.Pack(deps.Packer, state.UserQuery, chunks, deps.ContextWindow, deps.ReservedOutput)
	}

	system := buildSystemPrompt(len(chunks) > 0, state.CitationsEnabled, state.CustomInstructions, state.Language)
	user := fmt.Sprintf("%s\n\n%s", state.UserQuery, formatContext(chunks))

	text, err := streamCompletion(ctx, deps, deps.LongContextLLM, system, user)
	if err != nil {
		return fmt.Errorf("answer question: %w", err)
	}

	if state.CitationsEnabled {
		if invalid := ValidateCitations(text, fanout.Groups); len(invalid) > 0 {
			deps.emit(ErrorEvent{Message: fmt.Sprintf("answer cited unknown source ids: %v", invalid), Fatal: false})
		}
	}

	state.Chunks = chunks
	state.Groups = fanout.Groups
	state.FinalAnswer = text
	return nil
}
