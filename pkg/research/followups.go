package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quarryhq/quarry/pkg/llmclient"
)

const followUpsPromptTemplate = `Given the conversation history and the answer below, suggest up to 5 natural follow-up questions the user might ask next.

Return strict JSON matching exactly this shape, nothing else:
{"further_questions": [{"id": "1", "question": "..."}]}

History:
%s

Answer:
%s`

type followUpsResponse struct {
	FurtherQuestions []FollowUp `json:"further_questions"`
}

// nodeFollowUps suggests next questions from chat history and the answer
// just produced. A malformed response degrades to an empty list plus a
// warning event — follow-up generation never fails the run.
func nodeFollowUps(ctx context.Context, state *State, deps *Deps) {
	var history strings.Builder
	for _, m := range state.ChatHistory {
		fmt.Fprintf(&history, "%s: %s\n", m.Role, m.Content)
	}

	answer := state.FinalAnswer
	if answer == "" {
		for i, s := range state.Sections {
			if i > 0 {
				answer += "\n\n"
			}
			answer += s.Text
		}
	}

	prompt := fmt.Sprintf(followUpsPromptTemplate, history.String(), answer)
	raw, err := llmclient.Complete(ctx, deps.FastLLM, prompt)
	if err != nil {
		deps.emit(ErrorEvent{Message: fmt.Sprintf("follow-up generation failed: %v", err), Fatal: false})
		deps.emit(FollowUpsEvent{FollowUps: nil})
		return
	}

	var resp followUpsResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		deps.emit(ErrorEvent{Message: fmt.Sprintf("follow-up JSON malformed: %v", err), Fatal: false})
		deps.emit(FollowUpsEvent{FollowUps: nil})
		return
	}

	if len(resp.FurtherQuestions) > 5 {
		resp.FurtherQuestions = resp.FurtherQuestions[:5]
	}
	state.FollowUps = resp.FurtherQuestions
	deps.emit(FollowUpsEvent{FollowUps: state.FollowUps})
}
