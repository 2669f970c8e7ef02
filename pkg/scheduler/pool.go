package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quarryhq/quarry/pkg/config"
	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/store"
)

// OrphanStore is the subset of pkg/store.Store the pool's orphan scan
// needs: list runs whose latest entry is non-terminal, and the means to
// mark one as failed and degrade its connector's health.
type OrphanStore interface {
	ConnectorClaimer
	ActiveRuns(ctx context.Context) ([]store.ActiveRun, error)
	AppendTaskLog(ctx context.Context, e models.TaskLogEntry) (int64, error)
	RecordIndexRun(ctx context.Context, connectorID int64, p store.RecordIndexRunParams) error
	DueConnectorCount(ctx context.Context) (int, error)
}

// CancellationListener is the subset of pkg/events.NotifyListener the pool
// needs to receive cross-pod cancel requests. A run can be claimed by any
// pod in the deployment, but a cancel request (e.g. from the boundary API)
// is published once to RunChannel(runID) — every pod's listener gets the
// NOTIFY, and only the pod holding that run's context.CancelFunc actually
// cancels it; the rest no-op via CancelRun's map miss.
type CancellationListener interface {
	RegisterCancellationHandler(runID string, fn func(payload []byte))
	UnregisterCancellationHandler(runID string)
}

// WorkerPool manages a pool of scheduler workers sharing one podID.
// Adapted from pkg/queue/pool.go: activeSessions becomes activeRuns,
// AlertSession status queries become pkg/store.ActiveRuns/ActiveRunCount.
type WorkerPool struct {
	podID          string
	store          OrphanStore
	config         *config.QueueConfig
	executor       RunExecutor
	workers        []*Worker
	stopCh         chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
	cancelListener CancellationListener

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
	started    bool

	orphans orphanState
}

// WireCancellation attaches a CancellationListener so that a NOTIFY on a
// run's channel — published by any pod, typically in response to an API
// cancel request — cancels the run's context if it is claimed here.
// Optional: a pool with no listener wired still supports same-pod
// cancellation through CancelRun directly.
func (p *WorkerPool) WireCancellation(l CancellationListener) {
	p.cancelListener = l
}

type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// NewWorkerPool creates a new scheduler worker pool.
func NewWorkerPool(podID string, st OrphanStore, cfg *config.QueueConfig, executor RunExecutor) *WorkerPool {
	return &WorkerPool{
		podID:      podID,
		store:      st,
		config:     cfg,
		executor:   executor,
		workers:    make([]*Worker, 0, cfg.WorkerCount),
		stopCh:     make(chan struct{}),
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Start spawns worker goroutines and the orphan detection background task.
// Safe to call multiple times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("scheduler pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	slog.Info("starting scheduler worker pool", "pod_id", p.podID, "worker_count", p.config.WorkerCount)
	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.store, p.config, p.executor, p)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()

	slog.Info("scheduler worker pool started")
	return nil
}

// Stop signals all workers to stop and waits for their current run to
// finish (graceful shutdown, bounded by GracefulShutdownTimeout at the
// caller's discretion — Stop itself blocks until every worker returns).
func (p *WorkerPool) Stop() {
	slog.Info("stopping scheduler worker pool gracefully")
	active := p.getActiveRunIDs()
	if len(active) > 0 {
		slog.Info("waiting for active runs to complete", "count", len(active), "run_ids", active)
	}
	for _, worker := range p.workers {
		worker.Stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("scheduler worker pool stopped gracefully")
}

// RegisterRun stores a cancel function for manual/API-triggered cancellation
// and, if a CancellationListener is wired, arranges for a cross-pod cancel
// NOTIFY on this run's channel to invoke it too.
func (p *WorkerPool) RegisterRun(runID string, cancel context.CancelFunc) {
	p.mu.Lock()
	p.activeRuns[runID] = cancel
	p.mu.Unlock()

	if p.cancelListener != nil {
		p.cancelListener.RegisterCancellationHandler(runID, func(_ []byte) {
			p.CancelRun(runID)
		})
	}
}

// UnregisterRun removes the cancel function when a run ends, along with
// its cross-pod cancellation handler if one was wired.
func (p *WorkerPool) UnregisterRun(runID string) {
	p.mu.Lock()
	delete(p.activeRuns, runID)
	p.mu.Unlock()

	if p.cancelListener != nil {
		p.cancelListener.UnregisterCancellationHandler(runID)
	}
}

// CancelRun triggers context cancellation for a run claimed on this pod.
// Returns true if the run was found and cancelled here.
func (p *WorkerPool) CancelRun(runID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeRuns[runID]; ok {
		cancel()
		return true
	}
	return false
}

func (p *WorkerPool) getActiveRunIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.activeRuns))
	for id := range p.activeRuns {
		ids = append(ids, id)
	}
	return ids
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	ctx := context.Background()

	activeRuns, errA := p.store.ActiveRunCount(ctx)
	if errA != nil {
		slog.Error("failed to query active run count for health check", "pod_id", p.podID, "error", errA)
	}

	queueDepth, errQ := p.store.DueConnectorCount(ctx)
	if errQ != nil {
		slog.Error("failed to query due connector count for health check", "pod_id", p.podID, "error", errQ)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == WorkerStatusWorking {
			activeWorkers++
		}
	}

	dbHealthy := errA == nil && errQ == nil
	isHealthy := len(p.workers) > 0 && activeRuns <= p.config.MaxConcurrentRuns && dbHealthy

	var dbError string
	if !dbHealthy {
		if errA != nil {
			dbError = fmt.Sprintf("active run count query failed: %v", errA)
		} else {
			dbError = fmt.Sprintf("due connector count query failed: %v", errQ)
		}
	}

	p.orphans.mu.Lock()
	lastScan := p.orphans.lastOrphanScan
	recovered := p.orphans.orphansRecovered
	p.orphans.mu.Unlock()

	return &PoolHealth{
		IsHealthy:        isHealthy,
		DBReachable:      dbHealthy,
		DBError:          dbError,
		PodID:            p.podID,
		ActiveWorkers:    activeWorkers,
		TotalWorkers:     len(p.workers),
		ActiveRuns:       activeRuns,
		MaxConcurrent:    p.config.MaxConcurrentRuns,
		QueueDepth:       queueDepth,
		WorkerStats:      workerStats,
		LastOrphanScan:   lastScan,
		OrphansRecovered: recovered,
	}
}

// runOrphanDetection periodically scans for runs abandoned by a crashed
// pod — a non-terminal run_id whose latest task_log_entries row is older
// than OrphanThreshold. All pods run this independently; marking a run
// failed is idempotent (a second pod racing to mark the same run just
// appends a second, harmless failure row).
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("orphan detection failed", "error", err)
			}
		}
	}
}

func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	threshold := time.Now().Add(-p.config.OrphanThreshold)

	runs, err := p.store.ActiveRuns(ctx)
	if err != nil {
		return fmt.Errorf("query active runs: %w", err)
	}

	var orphans []store.ActiveRun
	for _, r := range runs {
		if r.LastEntryAt.Before(threshold) {
			orphans = append(orphans, r)
		}
	}

	if len(orphans) == 0 {
		p.orphans.mu.Lock()
		p.orphans.lastOrphanScan = time.Now()
		p.orphans.mu.Unlock()
		return nil
	}

	slog.Warn("detected orphaned connector runs", "count", len(orphans))
	recovered := 0
	for _, r := range orphans {
		if err := p.recoverOrphanedRun(ctx, r); err != nil {
			slog.Error("failed to recover orphaned run", "run_id", r.RunID, "error", err)
			continue
		}
		recovered++
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += recovered
	p.orphans.mu.Unlock()
	return nil
}

func (p *WorkerPool) recoverOrphanedRun(ctx context.Context, r store.ActiveRun) error {
	msg := fmt.Sprintf("orphaned: no task log activity since %s", r.LastEntryAt.Format(time.RFC3339))
	if _, err := p.store.AppendTaskLog(ctx, models.TaskLogEntry{
		RunID: r.RunID, TaskName: r.TaskName, Source: r.Source,
		SearchSpaceID: r.SearchSpaceID, ConnectorID: r.ConnectorID,
		Status: models.TaskLogStatusFailure, Message: msg,
	}); err != nil {
		return fmt.Errorf("append orphan failure row: %w", err)
	}

	if r.ConnectorID != nil {
		if err := p.store.RecordIndexRun(ctx, *r.ConnectorID, store.RecordIndexRunParams{
			Health: models.HealthStatusDegraded,
		}); err != nil {
			return fmt.Errorf("degrade connector health: %w", err)
		}
	}

	slog.Warn("orphaned connector run marked failed", "run_id", r.RunID, "connector_id", r.ConnectorID)
	return nil
}
