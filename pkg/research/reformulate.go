package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/quarryhq/quarry/pkg/llmclient"
)

const reformulatePrompt = `Given the conversation history below and a follow-up question, rewrite the follow-up as a standalone question that captures all the context it needs, without referring back to the history. Return only the rewritten question, nothing else.`

// nodeReformulate rewrites state.UserQuery into a standalone form using
// chat history. With no history there is nothing to resolve against, so
// the query passes through unchanged.
func nodeReformulate(ctx context.Context, state *State, deps *Deps) error {
	if len(state.ChatHistory) == 0 {
		state.ReformulatedQuery = state.UserQuery
		return nil
	}

	var sb strings.Builder
	sb.WriteString(reformulatePrompt)
	sb.WriteString("\n\nHistory:\n")
	for _, m := range state.ChatHistory {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	sb.WriteString("\nFollow-up question: ")
	sb.WriteString(state.UserQuery)

	out, err := llmclient.Complete(ctx, deps.FastLLM, sb.String())
	if err != nil {
		return fmt.Errorf("reformulate query: %w", err)
	}

	reformulated := strings.TrimSpace(out)
	if reformulated == "" {
		reformulated = state.UserQuery
	}
	state.ReformulatedQuery = reformulated
	return nil
}
