package scheduler

import (
	"context"

	"github.com/quarryhq/quarry/pkg/connector"
	"github.com/quarryhq/quarry/pkg/indexer"
	"github.com/quarryhq/quarry/pkg/models"
)

// PipelineFactory builds the fully-wired indexer.Pipeline, adapter, and run
// parameters for one connector's run. Building it per-run (rather than
// once at startup) lets each search space's configured embedder/summarizer
// LLM be resolved fresh, in case its LLMConfig changed since the last run.
// cmd/quarry supplies the concrete implementation, since only it has the
// wiring for pkg/llmclient, pkg/vectorstore, and pkg/connector.Registry.
type PipelineFactory interface {
	BuildPipeline(ctx context.Context, c *models.Connector) (*indexer.Pipeline, connector.Adapter, indexer.RunParams, error)
}

// PipelineExecutor adapts a PipelineFactory into the scheduler.RunExecutor
// contract Worker drives. This is the only place scheduler touches
// pkg/indexer — everything else in the package is domain-agnostic claim
// and health-tracking plumbing.
type PipelineExecutor struct {
	Factory PipelineFactory
}

// Execute builds and runs the pipeline for c, translating its RunSummary
// (or build error) into the generic ExecutionResult Worker logs.
func (e *PipelineExecutor) Execute(ctx context.Context, c *models.Connector, runID string) *ExecutionResult {
	pipeline, adapter, params, err := e.Factory.BuildPipeline(ctx, c)
	if err != nil {
		return &ExecutionResult{Err: err}
	}
	params.RunID = runID
	params.Connector = c

	summary, err := pipeline.Run(ctx, adapter, params)
	if err != nil {
		return &ExecutionResult{Err: err}
	}
	return &ExecutionResult{
		Indexed: summary.Indexed,
		Updated: summary.Updated,
		Failed:  summary.FailedItem,
	}
}
