package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/quarryhq/quarry/pkg/llmclient"
)

// Reranker orders a deduplicated chunk set against the combined query,
// most relevant first.
type Reranker interface {
	Rerank(ctx context.Context, query string, chunks []Chunk) ([]Chunk, error)
}

// ScoreSortReranker is the zero-configuration fallback: a stable sort on
// the connector-reported Score, descending.
type ScoreSortReranker struct{}

func (ScoreSortReranker) Rerank(_ context.Context, _ string, chunks []Chunk) ([]Chunk, error) {
	sorted := make([]Chunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	return sorted, nil
}

// LLMReranker scores each chunk's relevance to query with a single
// completion call rather than a dedicated cross-encoder endpoint (none of
// the vendored SDKs expose one): the model is asked to return one integer
// score per chunk, one per line, and chunks are sorted by that score.
// Chunks the model fails to score keep their original connector score so
// a malformed response degrades to ScoreSortReranker rather than dropping
// results.
type LLMReranker struct {
	Client llmclient.Client
}

func (r *LLMReranker) Rerank(ctx context.Context, query string, chunks []Chunk) ([]Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Score each passage's relevance to the query on a 0-100 scale.\nQuery: %s\n\n", query)
	for i, c := range chunks {
		fmt.Fprintf(&sb, "[%d] %s\n", i, truncate(c.Text, 500))
	}
	sb.WriteString("\nRespond with exactly one line per passage, \"<index> <score>\", nothing else.")

	raw, err := llmclient.Complete(ctx, r.Client, sb.String())
	if err != nil {
		return nil, fmt.Errorf("retrieval: rerank completion: %w", err)
	}

	scores := make([]float32, len(chunks))
	for i, c := range chunks {
		scores[i] = c.Score
	}
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil || idx < 0 || idx >= len(chunks) {
			continue
		}
		score, err := strconv.ParseFloat(fields[1], 32)
		if err != nil {
			continue
		}
		scores[idx] = float32(score)
	}

	sorted := make([]Chunk, len(chunks))
	copy(sorted, chunks)
	order := make([]int, len(chunks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	for i, idx := range order {
		sorted[i] = chunks[idx]
	}
	return sorted, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
