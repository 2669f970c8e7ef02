// Package scheduler claims due connectors and drives them through a
// RunExecutor (normally pkg/indexer's Pipeline), and separately runs the
// periodic-run reconciler that decides which connectors are due next.
//
// A worker pool claims connectors via pkg/store.ClaimDueConnectors's FOR
// UPDATE SKIP LOCKED statement so concurrent workers never double-claim,
// tracks in-flight runs for API-triggered cancellation, and sweeps for
// orphaned runs using pkg/store.ActiveRuns (the latest task_log status
// per run_id) — a run's own task_log_entries rows are its heartbeat, so
// no separate heartbeat column is needed.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/quarryhq/quarry/pkg/models"
)

// Sentinel errors returned by a worker's poll step.
var (
	// ErrNoConnectorsDue indicates no connector is currently due a run.
	ErrNoConnectorsDue = errors.New("scheduler: no connectors due")
	// ErrAtCapacity indicates the global concurrent-run limit is reached.
	ErrAtCapacity = errors.New("scheduler: at capacity")
)

// RunExecutor processes one claimed connector run to completion. The
// executor owns the entire run: indexer.Pipeline.Run already writes its
// own task log rows and RecordIndexRun bookkeeping, so the worker's job
// reduces to claiming, capacity checks, cancellation plumbing, and
// stats — it does not itself write any terminal state.
type RunExecutor interface {
	Execute(ctx context.Context, c *models.Connector, runID string) *ExecutionResult
}

// ExecutionResult is the lightweight summary a RunExecutor hands back for
// worker-side logging and health stats. Deliberately generic (counts, not
// pkg/indexer.RunSummary) so scheduler never imports indexer.
type ExecutionResult struct {
	Indexed int
	Updated int
	Failed  int
	Err     error
}

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth reports one worker's current state.
type WorkerHealth struct {
	ID              string    `json:"id"`
	Status          WorkerStatus `json:"status"`
	CurrentRunID    string    `json:"current_run_id,omitempty"`
	RunsProcessed   int       `json:"runs_processed"`
	LastActivity    time.Time `json:"last_activity"`
}

// PoolHealth reports the whole pool's current state.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveRuns       int            `json:"active_runs"`
	MaxConcurrent    int            `json:"max_concurrent"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}
