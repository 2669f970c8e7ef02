package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/connector"
	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/retrieval"
)

func TestRun_QnAMode_StreamsAnswerAndFollowUps(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]connector.SearchResult{
		"what is quarry?": {GroupID: "slack-general", Records: []connector.SearchRecord{
			{SourceID: "m1", Text: "quarry is an ingestion engine", Score: 0.9},
		}},
	}}
	target := retrieval.Target{ConnectorID: 1, ConnectorName: "slack", Type: models.ConnectorTypeSlack, Searcher: searcher}

	sink := &eventSink{}
	deps := &Deps{
		LongContextLLM: &fakeLLMClient{responses: []string{"Quarry ingests data [citation:m1]."}},
		FastLLM:        &fakeLLMClient{responses: []string{`{"further_questions": [{"id":"1","question":"what connectors does it support?"}]}`}},
		Reranker:       retrieval.ScoreSortReranker{},
		TopK:           10,
		MaxConcurrency: 2,
		Emit:           sink.collect,
	}

	req := Request{
		UserQuery:        "what is quarry?",
		Mode:             ModeQnA,
		Targets:          []retrieval.Target{target},
		SearchMode:       connector.SearchModeChunks,
		CitationsEnabled: true,
	}

	state, err := Run(context.Background(), req, deps)
	require.NoError(t, err)
	assert.Equal(t, "Quarry ingests data [citation:m1].", state.FinalAnswer)
	require.Len(t, state.FollowUps, 1)
	assert.Equal(t, "what connectors does it support?", state.FollowUps[0].Question)

	assert.Len(t, sink.of(EventTypeSources), 1)
	assert.NotEmpty(t, sink.of(EventTypeTextChunk))
	assert.Len(t, sink.of(EventTypeFollowUps), 1)
	assert.Empty(t, sink.of(EventTypeError), "valid citation must not emit a warning")
}

func TestRun_QnAMode_UnknownCitationEmitsWarning(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]connector.SearchResult{
		"q": {GroupID: "g1", Records: []connector.SearchRecord{{SourceID: "m1", Text: "x", Score: 0.9}}},
	}}
	target := retrieval.Target{ConnectorID: 1, ConnectorName: "slack", Type: models.ConnectorTypeSlack, Searcher: searcher}

	sink := &eventSink{}
	deps := &Deps{
		LongContextLLM: &fakeLLMClient{responses: []string{"Answer [citation:made-up]."}},
		FastLLM:        &fakeLLMClient{responses: []string{`{"further_questions": []}`}},
		Emit:           sink.collect,
	}

	req := Request{UserQuery: "q", Mode: ModeQnA, Targets: []retrieval.Target{target}, CitationsEnabled: true}
	state, err := Run(context.Background(), req, deps)
	require.NoError(t, err)
	assert.Equal(t, "Answer [citation:made-up].", state.FinalAnswer)
	assert.Len(t, sink.of(EventTypeError), 1)
}

func TestRun_ReportMode_WritesSectionsInOrder(t *testing.T) {
	outline := `{"answer_outline": [
		{"section_id": "s1", "section_title": "Overview", "questions": ["what is it?", "why use it?"]},
		{"section_id": "s2", "section_title": "Architecture", "questions": ["how does it work?", "what stack?"]}
	]}`

	searcher := &fakeSearcher{results: map[string]connector.SearchResult{
		"what is it?":       {GroupID: "g1", Records: []connector.SearchRecord{{SourceID: "m1", Text: "intro"}}},
		"why use it?":       {GroupID: "g1", Records: []connector.SearchRecord{{SourceID: "m1", Text: "intro"}}},
		"how does it work?": {GroupID: "g2", Records: []connector.SearchRecord{{SourceID: "m2", Text: "details"}}},
		"what stack?":       {GroupID: "g2", Records: []connector.SearchRecord{{SourceID: "m2", Text: "details"}}},
	}}
	target := retrieval.Target{ConnectorID: 1, ConnectorName: "slack", Type: models.ConnectorTypeSlack, Searcher: searcher}

	sink := &eventSink{}
	deps := &Deps{
		StrategicLLM:   &fakeLLMClient{responses: []string{outline}},
		LongContextLLM: &fakeLLMClient{responses: []string{"Overview prose.", "Architecture prose."}},
		FastLLM:        &fakeLLMClient{responses: []string{`{"further_questions": []}`}},
		TopK:           10,
		MaxConcurrency: 4,
		Emit:           sink.collect,
	}

	req := Request{UserQuery: "tell me about quarry", Mode: ModeGeneral, Targets: []retrieval.Target{target}}
	state, err := Run(context.Background(), req, deps)
	require.NoError(t, err)

	require.Len(t, state.Sections, 2)
	assert.Equal(t, "s1", state.Sections[0].SectionID)
	assert.Equal(t, "Overview prose.", state.Sections[0].Text)
	assert.Equal(t, "s2", state.Sections[1].SectionID)
	assert.Equal(t, "Architecture prose.", state.Sections[1].Text)
	assert.Empty(t, state.FinalAnswer, "report mode never sets FinalAnswer")
	assert.Len(t, sink.of(EventTypeSources), 2, "one sources event per section")
}
