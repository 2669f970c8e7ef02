package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quarryhq/quarry/pkg/models"
)

// PeriodicStore is the subset of pkg/store.Store Scheduler needs to
// reconcile its in-memory schedule against the database.
type PeriodicStore interface {
	ListPeriodicConnectors(ctx context.Context) ([]*models.Connector, error)
	ScheduleNext(ctx context.Context, connectorID int64, at time.Time) error
}

// fireState is what Scheduler remembers about one connector's schedule
// between reconcile ticks, so it only writes next_scheduled_at when the
// connector's frequency actually changed or it has no schedule yet.
type fireState struct {
	frequencyMins int
}

// Scheduler diffs (connector_id, frequency) against an in-memory
// next-fire-time map on every reconcile tick, the same idempotent
// create/update/delete reconciliation idiom pkg/events/listener.go uses
// for dynamic LISTEN/UNLISTEN: a single owning goroutine holds the map, so
// no lock is needed for the map itself — only TriggerNow (called from an
// HTTP handler goroutine) needs the mutex below.
//
// Reconcile never claims or executes a run itself; it only keeps
// next_scheduled_at current so pkg/store.ClaimDueConnectors' FOR UPDATE
// SKIP LOCKED query (driven by WorkerPool's workers) finds the right rows
// due at the right time.
type Scheduler struct {
	store PeriodicStore

	mu    sync.Mutex
	state map[int64]fireState
}

// NewScheduler builds a Scheduler backed by st.
func NewScheduler(st PeriodicStore) *Scheduler {
	return &Scheduler{store: st, state: make(map[int64]fireState)}
}

// Run ticks Reconcile every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil {
				slog.Error("scheduler reconcile failed", "error", err)
			}
		}
	}
}

// Reconcile fetches every periodically-indexed connector and ensures each
// has a next_scheduled_at consistent with its current frequency:
//   - a connector with no schedule yet (just enabled, or never synced)
//     fires immediately;
//   - a connector whose frequency changed since the last reconcile
//     re-anchors off last_indexed_at (or now, if never synced);
//   - anything else is left alone — ClaimDueConnectors owns advancing
//     next_scheduled_at on every successful claim.
//
// Connectors no longer periodic (disabled since the last tick) are simply
// dropped from the in-memory map; their row's next_scheduled_at is left as
// a stale value, which is harmless since ClaimDueConnectors' WHERE clause
// already excludes non-periodic connectors.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	connectors, err := s.store.ListPeriodicConnectors(ctx)
	if err != nil {
		return err
	}

	seen := make(map[int64]struct{}, len(connectors))
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range connectors {
		seen[c.ID] = struct{}{}
		prev, known := s.state[c.ID]
		s.state[c.ID] = fireState{frequencyMins: c.IndexingFrequencyMins}

		needsSchedule := c.NextScheduledAt == nil
		frequencyChanged := known && prev.frequencyMins != c.IndexingFrequencyMins
		if !needsSchedule && !frequencyChanged {
			continue
		}

		next := now
		if c.LastIndexedAt != nil {
			anchored := c.LastIndexedAt.Add(time.Duration(c.IndexingFrequencyMins) * time.Minute)
			if anchored.After(now) {
				next = anchored
			}
		}
		if err := s.store.ScheduleNext(ctx, c.ID, next); err != nil {
			slog.Error("failed to schedule connector", "connector_id", c.ID, "error", err)
			continue
		}
	}

	for id := range s.state {
		if _, ok := seen[id]; !ok {
			delete(s.state, id)
		}
	}
	return nil
}

// TriggerNow schedules connectorID to fire on the very next claim poll,
// used by pkg/boundary's on-demand run-trigger endpoint.
func (s *Scheduler) TriggerNow(ctx context.Context, connectorID int64) error {
	return s.store.ScheduleNext(ctx, connectorID, time.Now())
}
