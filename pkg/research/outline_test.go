package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeOutline_MalformedJSONFails(t *testing.T) {
	deps := &Deps{StrategicLLM: &fakeLLMClient{responses: []string{"not json at all"}}}
	state := &State{Request: Request{Mode: ModeGeneral, ReformulatedQuery: "q"}}

	err := nodeOutline(context.Background(), state, deps)
	require.Error(t, err)
	assert.Empty(t, state.Outline)
}

func TestNodeOutline_QuestionCountOutOfRangeFails(t *testing.T) {
	bad := `{"answer_outline": [{"section_id": "s1", "section_title": "x", "questions": ["only one"]}]}`
	deps := &Deps{StrategicLLM: &fakeLLMClient{responses: []string{bad}}}
	state := &State{Request: Request{Mode: ModeGeneral, ReformulatedQuery: "q"}}

	err := nodeOutline(context.Background(), state, deps)
	assert.Error(t, err)
}

func TestNodeOutline_CodeFencedJSONParses(t *testing.T) {
	fenced := "```json\n{\"answer_outline\": [{\"section_id\": \"s1\", \"section_title\": \"x\", \"questions\": [\"a\", \"b\"]}]}\n```"
	deps := &Deps{StrategicLLM: &fakeLLMClient{responses: []string{fenced}}}
	state := &State{Request: Request{Mode: ModeGeneral, ReformulatedQuery: "q"}}

	err := nodeOutline(context.Background(), state, deps)
	require.NoError(t, err)
	require.Len(t, state.Outline, 1)
	assert.Equal(t, "s1", state.Outline[0].SectionID)
}
