package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quarryhq/quarry/pkg/apperr"
	"github.com/quarryhq/quarry/pkg/models"
)

// AppendTaskLog inserts one task log row. Entries are append-only; a run's
// lifecycle is reconstructed by reading all rows for its run_id in order.
func (s *Store) AppendTaskLog(ctx context.Context, e models.TaskLogEntry) (int64, error) {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}
	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO task_log_entries
			(run_id, task_name, source, search_space_id, connector_id, status, message, metadata, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		e.RunID, e.TaskName, e.Source, e.SearchSpaceID, e.ConnectorID, string(e.Status), e.Message, metadata, e.DurationMS,
	).Scan(&id)
	if err != nil {
		return 0, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	return id, nil
}

// TaskLogForRun returns every entry logged against runID, oldest first.
func (s *Store) TaskLogForRun(ctx context.Context, runID string) ([]models.TaskLogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, task_name, source, search_space_id, connector_id, status, message, metadata, duration_ms, created_at
		FROM task_log_entries
		WHERE run_id = $1
		ORDER BY created_at ASC, id ASC`, runID)
	if err != nil {
		return nil, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	defer rows.Close()

	var out []models.TaskLogEntry
	for rows.Next() {
		var e models.TaskLogEntry
		var status string
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.RunID, &e.TaskName, &e.Source, &e.SearchSpaceID, &e.ConnectorID,
			&status, &e.Message, &metadata, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task log row: %w", err)
		}
		e.Status = models.TaskLogStatus(status)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal task log metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task log rows: %w", err)
	}
	return out, nil
}

// LatestTaskLogStatus reports whether runID's most recent entry is terminal,
// used by the scheduler to decide whether a run can be reaped as stuck.
func (s *Store) LatestTaskLogStatus(ctx context.Context, runID string) (models.TaskLogStatus, error) {
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT status FROM task_log_entries
		WHERE run_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, runID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	return models.TaskLogStatus(status), nil
}
