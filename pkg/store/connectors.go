package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quarryhq/quarry/pkg/apperr"
	"github.com/quarryhq/quarry/pkg/models"
)

// CreateConnector inserts a new Connector, enforcing the non-OAuth-singleton
// invariant at the caller's discretion (pkg/connector checks it before
// calling, since it needs the connector type's IsOAuth() to decide).
func (s *Store) CreateConnector(ctx context.Context, c models.Connector) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, apperr.New(apperr.KindItemMalformed, false, err)
	}
	config, err := json.Marshal(c.Config)
	if err != nil {
		return 0, fmt.Errorf("marshal config: %w", err)
	}
	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO connectors
			(search_space_id, type, name, config, is_indexable,
			 periodic_indexing_enabled, indexing_frequency_minutes, health_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		c.SearchSpaceID, string(c.Type), c.Name, config, c.IsIndexable,
		c.PeriodicIndexingEnabled, c.IndexingFrequencyMins, string(models.HealthStatusOK),
	).Scan(&id)
	if err != nil {
		return 0, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	return id, nil
}

// CountNonOAuthConnectors reports how many instances of connectorType already
// exist in searchSpaceID, used to enforce the singleton invariant for
// non-OAuth connector types before CreateConnector.
func (s *Store) CountNonOAuthConnectors(ctx context.Context, searchSpaceID int64, connectorType models.ConnectorType) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM connectors WHERE search_space_id = $1 AND type = $2`,
		searchSpaceID, string(connectorType),
	).Scan(&count)
	if err != nil {
		return 0, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	return count, nil
}

func scanConnector(row pgx.Row) (*models.Connector, error) {
	var c models.Connector
	var typ, health string
	var config []byte
	err := row.Scan(&c.ID, &c.SearchSpaceID, &typ, &c.Name, &config, &c.IsIndexable,
		&c.PeriodicIndexingEnabled, &c.IndexingFrequencyMins, &c.LastIndexedAt, &c.NextScheduledAt,
		&c.LastIndexedSettingsHash, &c.DeltaCursor, &health, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Type = models.ConnectorType(typ)
	c.HealthStatus = models.HealthStatus(health)
	if len(config) > 0 {
		if err := json.Unmarshal(config, &c.Config); err != nil {
			return nil, fmt.Errorf("unmarshal connector config: %w", err)
		}
	}
	return &c, nil
}

const connectorColumns = `id, search_space_id, type, name, config, is_indexable,
	periodic_indexing_enabled, indexing_frequency_minutes, last_indexed_at, next_scheduled_at,
	last_indexed_settings_hash, delta_cursor, health_status, created_at, updated_at`

// GetConnector fetches a Connector by id.
func (s *Store) GetConnector(ctx context.Context, id int64) (*models.Connector, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+connectorColumns+` FROM connectors WHERE id = $1`, id)
	c, err := scanConnector(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindItemMalformed, false, errors.New("connector not found"))
	}
	if err != nil {
		return nil, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	return c, nil
}

// ListPeriodicConnectors returns every connector with periodic indexing
// enabled, used by pkg/scheduler's Scheduler to reconcile its in-memory
// next-fire-time map against the database on each tick.
func (s *Store) ListPeriodicConnectors(ctx context.Context) ([]*models.Connector, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+connectorColumns+` FROM connectors WHERE periodic_indexing_enabled`)
	if err != nil {
		return nil, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	defer rows.Close()

	var out []*models.Connector
	for rows.Next() {
		c, err := scanConnector(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connector: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate periodic connectors: %w", err)
	}
	return out, nil
}

// ListConnectorsBySearchSpace returns every connector configured for
// searchSpaceID, used by pkg/boundary's chat handler to resolve a caller's
// selected_connectors names against the space's actual connector rows.
func (s *Store) ListConnectorsBySearchSpace(ctx context.Context, searchSpaceID int64) ([]*models.Connector, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+connectorColumns+` FROM connectors WHERE search_space_id = $1`,
		searchSpaceID,
	)
	if err != nil {
		return nil, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	defer rows.Close()

	var out []*models.Connector
	for rows.Next() {
		c, err := scanConnector(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connector: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search space connectors: %w", err)
	}
	return out, nil
}

// DueConnectorCount reports how many connectors are currently due a run
// (periodic, scheduled, and past due), surfaced by the scheduler pool's
// Health() as queue depth.
func (s *Store) DueConnectorCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM connectors
		WHERE periodic_indexing_enabled AND next_scheduled_at IS NOT NULL AND next_scheduled_at <= now()`,
	).Scan(&count)
	if err != nil {
		return 0, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	return count, nil
}

// ScheduleNext sets a connector's next_scheduled_at, used both by the
// on-demand trigger (schedule immediately) and by Scheduler.Reconcile
// (schedule a newly-enabled or re-frequenced connector's first fire).
func (s *Store) ScheduleNext(ctx context.Context, connectorID int64, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE connectors SET next_scheduled_at = $1 WHERE id = $2`, at, connectorID)
	if err != nil {
		return apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	return nil
}

// ClaimDueConnectors selects up to limit connectors whose next_scheduled_at
// has passed, locking each row FOR UPDATE SKIP LOCKED so concurrent workers
// never claim the same connector twice, and immediately pushes their
// next_scheduled_at forward so a slow run doesn't get re-claimed mid-flight.
func (s *Store) ClaimDueConnectors(ctx context.Context, limit int) ([]*models.Connector, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.New(apperr.KindDatabaseTransient, true, fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT `+connectorColumns+`
		FROM connectors
		WHERE periodic_indexing_enabled
		  AND next_scheduled_at IS NOT NULL
		  AND next_scheduled_at <= now()
		ORDER BY next_scheduled_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, apperr.New(apperr.KindDatabaseTransient, true, fmt.Errorf("query due connectors: %w", err))
	}

	var claimed []*models.Connector
	var ids []int64
	for rows.Next() {
		c, err := scanConnector(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan connector: %w", err)
		}
		claimed = append(claimed, c)
		ids = append(ids, c.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due connectors: %w", err)
	}

	for i, c := range claimed {
		next := time.Now().Add(time.Duration(c.IndexingFrequencyMins) * time.Minute)
		if _, err := tx.Exec(ctx, `UPDATE connectors SET next_scheduled_at = $1 WHERE id = $2`, next, ids[i]); err != nil {
			return nil, fmt.Errorf("advance schedule for connector %d: %w", ids[i], err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.New(apperr.KindDatabaseTransient, true, fmt.Errorf("commit: %w", err))
	}
	return claimed, nil
}

// RecordIndexRunParams is the post-loop bookkeeping the indexing pipeline
// writes after a run: the new delta cursor (if any), the settings hash
// the run used, and whether last_indexed_at advances (the caller may
// defer this when orchestrating retries).
type RecordIndexRunParams struct {
	SettingsHash      string
	DeltaCursor       string // empty leaves the stored cursor untouched
	Health            models.HealthStatus
	UpdateLastIndexed bool
}

// RecordIndexRun updates a connector's bookkeeping fields after a run
// completes (successfully or not). last_indexed_at only advances when
// UpdateLastIndexed is true, so a zero-item run can still be cheap (it
// still advances) while a caller orchestrating retries can defer it.
func (s *Store) RecordIndexRun(ctx context.Context, connectorID int64, p RecordIndexRunParams) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE connectors
		SET last_indexed_at = CASE WHEN $1 THEN now() ELSE last_indexed_at END,
		    last_indexed_settings_hash = $2,
		    delta_cursor = CASE WHEN $3 = '' THEN delta_cursor ELSE $3 END,
		    health_status = $4,
		    updated_at = now()
		WHERE id = $5`,
		p.UpdateLastIndexed, p.SettingsHash, p.DeltaCursor, string(p.Health), connectorID,
	)
	if err != nil {
		return apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	return nil
}
