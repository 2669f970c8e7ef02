package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/llmclient"
)

func TestScoreSortReranker_SortsDescending(t *testing.T) {
	chunks := []Chunk{{SourceID: "a", Score: 0.2}, {SourceID: "b", Score: 0.9}, {SourceID: "c", Score: 0.5}}
	out, err := ScoreSortReranker{}.Rerank(context.Background(), "q", chunks)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "b", out[0].SourceID)
	assert.Equal(t, "c", out[1].SourceID)
	assert.Equal(t, "a", out[2].SourceID)
}

type fakeLLMClient struct {
	response string
}

func (f *fakeLLMClient) Generate(ctx context.Context, input llmclient.GenerateInput) (<-chan llmclient.Chunk, error) {
	ch := make(chan llmclient.Chunk, 1)
	ch <- &llmclient.TextChunk{Content: f.response}
	close(ch)
	return ch, nil
}

func (f *fakeLLMClient) Embed(ctx context.Context, texts []string) ([][]float32, error) { return nil, nil }
func (f *fakeLLMClient) Close() error                                                   { return nil }

func TestLLMReranker_ReordersByParsedScore(t *testing.T) {
	chunks := []Chunk{{SourceID: "a", Text: "alpha"}, {SourceID: "b", Text: "beta"}}
	client := &fakeLLMClient{response: "0 10\n1 90\n"}
	r := &LLMReranker{Client: client}

	out, err := r.Rerank(context.Background(), "query", chunks)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].SourceID)
	assert.Equal(t, "a", out[1].SourceID)
}

func TestLLMReranker_MalformedResponseKeepsOriginalScores(t *testing.T) {
	chunks := []Chunk{{SourceID: "a", Text: "alpha", Score: 0.1}, {SourceID: "b", Text: "beta", Score: 0.8}}
	client := &fakeLLMClient{response: "not a valid score list"}
	r := &LLMReranker{Client: client}

	out, err := r.Rerank(context.Background(), "query", chunks)
	require.NoError(t, err)
	assert.Equal(t, "b", out[0].SourceID, "falls back to original connector scores")
}
