package store

import (
	"context"
	"time"

	"github.com/quarryhq/quarry/pkg/apperr"
	"github.com/quarryhq/quarry/pkg/models"
)

// ActiveRun is one run whose most recent task log entry is non-terminal —
// either still in flight, or abandoned by a pod that crashed before
// writing a terminal row.
type ActiveRun struct {
	RunID         string
	ConnectorID   *int64
	SearchSpaceID int64
	TaskName      string
	Source        string
	Status        models.TaskLogStatus
	LastEntryAt   time.Time
}

// ActiveRuns lists every run currently considered in flight, one row per
// run_id, derived from each run's latest task_log_entries row. Used by
// pkg/scheduler both to enforce the global concurrent-run cap and to find
// orphaned runs (LastEntryAt older than its orphan threshold).
func (s *Store) ActiveRuns(ctx context.Context) ([]ActiveRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (run_id) run_id, connector_id, search_space_id, task_name, source, status, created_at
		FROM task_log_entries
		ORDER BY run_id, created_at DESC, id DESC`)
	if err != nil {
		return nil, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	defer rows.Close()

	var out []ActiveRun
	for rows.Next() {
		var r ActiveRun
		var status string
		if err := rows.Scan(&r.RunID, &r.ConnectorID, &r.SearchSpaceID, &r.TaskName, &r.Source, &status, &r.LastEntryAt); err != nil {
			return nil, err
		}
		r.Status = models.TaskLogStatus(status)
		if r.Status.IsTerminal() {
			continue
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveRunCount is a cheaper variant of ActiveRuns for the scheduler's
// per-poll capacity check, counting distinct run_ids whose latest entry is
// non-terminal without materializing every row.
func (s *Store) ActiveRunCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT DISTINCT ON (run_id) status
			FROM task_log_entries
			ORDER BY run_id, created_at DESC, id DESC
		) latest
		WHERE status NOT IN ($1, $2)`,
		string(models.TaskLogStatusSuccess), string(models.TaskLogStatusFailure),
	).Scan(&count)
	if err != nil {
		return 0, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	return count, nil
}
