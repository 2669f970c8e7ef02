package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolCatchupQuerier implements CatchupQuerier directly against the events
// table over a pgxpool.Pool — there is no generated ORM layer in this
// module, so the query is hand-written SQL rather than routed through a
// services-package adapter.
type PoolCatchupQuerier struct {
	pool *pgxpool.Pool
}

// NewPoolCatchupQuerier creates a CatchupQuerier over the Store's pool.
func NewPoolCatchupQuerier(pool *pgxpool.Pool) *PoolCatchupQuerier {
	return &PoolCatchupQuerier{pool: pool}
}

// GetCatchupEvents queries events since sinceID (exclusive) on the given
// channel, ordered by id, capped at limit rows.
func (q *PoolCatchupQuerier) GetCatchupEvents(ctx context.Context, channel string, sinceID, limit int) ([]CatchupEvent, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT id, payload FROM events WHERE channel = $1 AND id > $2 ORDER BY id ASC LIMIT $3`,
		channel, sinceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("catchup query: %w", err)
	}
	defer rows.Close()

	var result []CatchupEvent
	for rows.Next() {
		var id int
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("catchup scan: %w", err)
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("catchup payload decode: %w", err)
		}
		result = append(result, CatchupEvent{ID: id, Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catchup rows: %w", err)
	}
	return result, nil
}
