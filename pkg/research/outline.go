package research

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/quarryhq/quarry/pkg/llmclient"
)

const outlinePromptTemplate = `Produce an outline for a research report answering: %q

Return strict JSON matching exactly this shape, nothing else:
{"answer_outline": [{"section_id": "s1", "section_title": "...", "questions": ["...", "..."]}]}

Produce exactly %d sections. Each section needs between 2 and 5 research questions that, if answered, would let you write that section.`

type outlineResponse struct {
	AnswerOutline []OutlineSection `json:"answer_outline"`
}

var jsonFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// nodeOutline asks the strategic LLM for a section outline under a strict
// JSON schema. Malformed JSON or an out-of-range question count fails the
// run outright — there is no silent repair, matching the prompt's own
// enforcement of citation format elsewhere in the graph.
func nodeOutline(ctx context.Context, state *State, deps *Deps) error {
	target := sectionTarget[state.Mode]
	if target == 0 {
		target = sectionTarget[ModeGeneral]
	}

	prompt := fmt.Sprintf(outlinePromptTemplate, state.ReformulatedQuery, target)
	raw, err := llmclient.Complete(ctx, deps.StrategicLLM, prompt)
	if err != nil {
		return fmt.Errorf("generate outline: %w", err)
	}

	var resp outlineResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return fmt.Errorf("parse outline JSON: %w", err)
	}
	if len(resp.AnswerOutline) == 0 {
		return fmt.Errorf("outline JSON contained no sections")
	}
	for _, s := range resp.AnswerOutline {
		if len(s.Questions) < 2 || len(s.Questions) > 5 {
			return fmt.Errorf("section %q has %d questions, want 2..5", s.SectionID, len(s.Questions))
		}
	}

	state.Outline = resp.AnswerOutline
	return nil
}

// extractJSON strips a markdown code fence around the response if the
// model wrapped its JSON in one; otherwise returns raw unchanged.
func extractJSON(raw string) string {
	if m := jsonFencePattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}
