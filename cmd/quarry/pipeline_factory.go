package main

import (
	"context"
	"fmt"

	"github.com/quarryhq/quarry/pkg/connector"
	"github.com/quarryhq/quarry/pkg/events"
	"github.com/quarryhq/quarry/pkg/hashing"
	"github.com/quarryhq/quarry/pkg/indexer"
	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/store"
	"github.com/quarryhq/quarry/pkg/vectorstore"
)

// pipelineFactory implements pkg/scheduler.PipelineFactory: it is the only
// place in this program that knows how to turn a models.Connector row into
// a fully-wired indexer.Pipeline, since only cmd/quarry holds the
// connector registry and the LLM/hashing stack pkg/scheduler deliberately
// doesn't import.
type pipelineFactory struct {
	store     *store.Store
	vectors   *vectorstore.Store
	publisher *events.EventPublisher
	registry  *connector.Registry

	chunker    hashing.Chunker
	tokenizer  hashing.Tokenizer
	summarizer hashing.Summarizer
	embedder   indexer.Embedder

	chunkTargetTokens int
}

// BuildPipeline builds adapter for c and hands back the shared pipeline
// collaborators plus the run policy: incremental sync and last-indexed
// bookkeeping are always on, with an empty date window so
// pkg/connector.ResolveDateRange's own fallback (last indexed, or the past
// year) decides the actual scan range.
func (f *pipelineFactory) BuildPipeline(ctx context.Context, c *models.Connector) (*indexer.Pipeline, connector.Adapter, indexer.RunParams, error) {
	adapter, err := f.registry.Build(c.Type, c.Config)
	if err != nil {
		return nil, nil, indexer.RunParams{}, fmt.Errorf("cmd/quarry: build adapter for connector %d: %w", c.ID, err)
	}

	pipeline := &indexer.Pipeline{
		Store:      f.store,
		Vectors:    f.vectors,
		Events:     f.publisher,
		Chunker:    f.chunker,
		Tokenizer:  f.tokenizer,
		Summarizer: f.summarizer,
		Embedder:   f.embedder,
	}

	params := indexer.RunParams{
		IncrementalSyncEnabled: true,
		UpdateLastIndexed:      true,
		ChunkTargetTokens:      f.chunkTargetTokens,
	}

	return pipeline, adapter, params, nil
}
