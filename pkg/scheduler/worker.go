package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quarryhq/quarry/pkg/config"
	"github.com/quarryhq/quarry/pkg/models"
)

// RunRegistry is the subset of WorkerPool a Worker needs for cancel-function
// registration, narrowed the same way pkg/queue/worker.go's SessionRegistry
// narrows *WorkerPool.
type RunRegistry interface {
	RegisterRun(runID string, cancel context.CancelFunc)
	UnregisterRun(runID string)
}

// ConnectorClaimer is the subset of pkg/store.Store a Worker needs to claim
// and count runs.
type ConnectorClaimer interface {
	ClaimDueConnectors(ctx context.Context, limit int) ([]*models.Connector, error)
	ActiveRunCount(ctx context.Context) (int, error)
}

// Worker polls for due connectors and drives each through a RunExecutor.
type Worker struct {
	id       string
	podID    string
	store    ConnectorClaimer
	config   *config.QueueConfig
	executor RunExecutor
	pool     RunRegistry
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu            sync.RWMutex
	status        WorkerStatus
	currentRunID  string
	runsProcessed int
	lastActivity  time.Time
}

// NewWorker creates a new scheduler worker.
func NewWorker(id, podID string, st ConnectorClaimer, cfg *config.QueueConfig, executor RunExecutor, pool RunRegistry) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		store:        st,
		config:       cfg,
		executor:     executor,
		pool:         pool,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker's polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for its current run to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns this worker's current health snapshot.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        w.status,
		CurrentRunID:  w.currentRunID,
		RunsProcessed: w.runsProcessed,
		LastActivity:  w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("scheduler worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("scheduler worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, scheduler worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoConnectorsDue) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error claiming connector", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a due connector, and runs it.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	active, err := w.store.ActiveRunCount(ctx)
	if err != nil {
		return fmt.Errorf("checking active run count: %w", err)
	}
	if active >= w.config.MaxConcurrentRuns {
		return ErrAtCapacity
	}

	claimed, err := w.store.ClaimDueConnectors(ctx, 1)
	if err != nil {
		return fmt.Errorf("claiming due connectors: %w", err)
	}
	if len(claimed) == 0 {
		return ErrNoConnectorsDue
	}
	c := claimed[0]
	runID := uuid.NewString()

	log := slog.With("run_id", runID, "connector_id", c.ID, "worker_id", w.id)
	log.Info("connector run claimed")

	w.setStatus(WorkerStatusWorking, runID)
	defer w.setStatus(WorkerStatusIdle, "")

	runCtx, cancel := context.WithTimeout(ctx, w.config.RunTimeout)
	defer cancel()

	w.pool.RegisterRun(runID, cancel)
	defer w.pool.UnregisterRun(runID)

	result := w.executor.Execute(runCtx, c, runID)
	if result == nil {
		result = &ExecutionResult{Err: fmt.Errorf("executor returned nil result")}
	}

	switch {
	case result.Err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		log.Warn("connector run timed out", "run_timeout", w.config.RunTimeout)
	case result.Err != nil && errors.Is(runCtx.Err(), context.Canceled):
		log.Warn("connector run cancelled")
	case result.Err != nil:
		log.Error("connector run failed", "error", result.Err)
	default:
		log.Info("connector run complete",
			"indexed", result.Indexed, "updated", result.Updated, "failed", result.Failed)
	}

	w.mu.Lock()
	w.runsProcessed++
	w.mu.Unlock()
	return nil
}

// pollInterval returns the poll duration with jitter, range
// [base-jitter, base+jitter].
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus, runID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentRunID = runID
	w.lastActivity = time.Now()
}
