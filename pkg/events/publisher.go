package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventPublisher publishes events for WebSocket delivery.
// Persistent events are stored in the events table then broadcast via NOTIFY.
// Transient events (streaming chunks) are broadcast via NOTIFY only.
//
// Each public method accepts a specific typed payload struct — see payloads.go.
// Internally, payloads are marshaled to JSON and routed to the appropriate
// channel via persistAndNotify or notifyOnly.
type EventPublisher struct {
	pool *pgxpool.Pool
}

// NewEventPublisher creates a new EventPublisher over the Store's pool
// (see pkg/store.Store.Pool).
func NewEventPublisher(pool *pgxpool.Pool) *EventPublisher {
	return &EventPublisher{pool: pool}
}

// --- Typed public methods ---

// PublishRunStatus persists a run status event to the run's channel and
// broadcasts a transient copy to the global connector-runs channel. Both
// publishes are best-effort: if the persistent one fails, the transient
// one is still attempted. Returns the first error encountered (if any).
func (p *EventPublisher) PublishRunStatus(ctx context.Context, runID string, payload RunStatusPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal RunStatusPayload: %w", err)
	}

	var firstErr error
	if err := p.persistAndNotify(ctx, runID, RunChannel(runID), payloadJSON); err != nil {
		slog.Warn("Failed to publish run status to run channel",
			"run_id", runID, "status", payload.Status, "error", err)
		firstErr = err
	}

	if err := p.notifyOnly(ctx, GlobalConnectorRunsChannel, payloadJSON); err != nil {
		slog.Warn("Failed to publish run status to global channel",
			"run_id", runID, "status", payload.Status, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// PublishTaskLogAppended persists and broadcasts a task_log.appended event.
func (p *EventPublisher) PublishTaskLogAppended(ctx context.Context, runID string, payload TaskLogAppendedPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal TaskLogAppendedPayload: %w", err)
	}
	return p.persistAndNotify(ctx, runID, RunChannel(runID), payloadJSON)
}

// PublishChatCreated persists and broadcasts a chat.created event.
// Used when a new chat thread is created (first message).
func (p *EventPublisher) PublishChatCreated(ctx context.Context, threadID string, payload ChatCreatedPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal ChatCreatedPayload: %w", err)
	}
	return p.persistAndNotify(ctx, threadID, ThreadChannel(threadID), payloadJSON)
}

// PublishChatUserMessage persists and broadcasts a chat.user_message event.
func (p *EventPublisher) PublishChatUserMessage(ctx context.Context, threadID string, payload ChatUserMessagePayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal ChatUserMessagePayload: %w", err)
	}
	return p.persistAndNotify(ctx, threadID, ThreadChannel(threadID), payloadJSON)
}

// PublishResearchTerminalInfo broadcasts a research.terminal_info transient
// event (no DB persistence — progress lines aren't worth replaying).
func (p *EventPublisher) PublishResearchTerminalInfo(ctx context.Context, threadID string, payload ResearchTerminalInfoPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal ResearchTerminalInfoPayload: %w", err)
	}
	return p.notifyOnly(ctx, ThreadChannel(threadID), payloadJSON)
}

// PublishResearchSources persists and broadcasts a research.sources event —
// persisted so a reconnecting client's catchup still shows what was found.
func (p *EventPublisher) PublishResearchSources(ctx context.Context, threadID string, payload ResearchSourcesPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal ResearchSourcesPayload: %w", err)
	}
	return p.persistAndNotify(ctx, threadID, ThreadChannel(threadID), payloadJSON)
}

// PublishResearchTextChunk broadcasts a research.text_chunk transient event
// (no DB persistence). High-frequency streamed answer tokens.
func (p *EventPublisher) PublishResearchTextChunk(ctx context.Context, threadID string, payload ResearchTextChunkPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal ResearchTextChunkPayload: %w", err)
	}
	return p.notifyOnly(ctx, ThreadChannel(threadID), payloadJSON)
}

// PublishResearchFollowUps persists and broadcasts a research.follow_ups
// event — the terminal event of a successful research turn.
func (p *EventPublisher) PublishResearchFollowUps(ctx context.Context, threadID string, payload ResearchFollowUpsPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal ResearchFollowUpsPayload: %w", err)
	}
	return p.persistAndNotify(ctx, threadID, ThreadChannel(threadID), payloadJSON)
}

// PublishResearchError persists and broadcasts a research.error event.
// Fatal errors terminate the client's stream; non-fatal ones are warnings.
func (p *EventPublisher) PublishResearchError(ctx context.Context, threadID string, payload ResearchErrorPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal ResearchErrorPayload: %w", err)
	}
	return p.persistAndNotify(ctx, threadID, ThreadChannel(threadID), payloadJSON)
}

// --- Internal core methods ---

// persistAndNotify persists a pre-marshaled event to the database and broadcasts
// via NOTIFY in a single transaction (pg_notify is transactional — held until COMMIT).
func (p *EventPublisher) persistAndNotify(ctx context.Context, groupID, channel string, payloadJSON []byte) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 1. Persist to events table (within transaction)
	var eventID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO events (group_id, channel, payload, created_at) VALUES ($1, $2, $3, now()) RETURNING id`,
		groupID, channel, payloadJSON,
	).Scan(&eventID)
	if err != nil {
		return fmt.Errorf("failed to persist event: %w", err)
	}

	// Build NOTIFY payload with db_event_id for catchup tracking.
	notifyPayload, err := injectDBEventIDAndTruncate(payloadJSON, eventID)
	if err != nil {
		return err
	}

	// 2. pg_notify within same transaction — held until COMMIT
	_, err = tx.Exec(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload)
	if err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}

	// 3. Commit — INSERT is persisted and NOTIFY fires atomically
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit event transaction: %w", err)
	}

	return nil
}

// notifyOnly broadcasts a pre-marshaled event via NOTIFY without persisting to DB.
func (p *EventPublisher) notifyOnly(ctx context.Context, channel string, payloadJSON []byte) error {
	notifyPayload, err := truncateIfNeeded(string(payloadJSON))
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload)
	if err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	return nil
}

// --- Internal helpers ---

// injectDBEventIDAndTruncate adds db_event_id to the JSON payload for NOTIFY
// delivery and applies truncation if the result exceeds PostgreSQL's limit.
func injectDBEventIDAndTruncate(payloadJSON []byte, dbEventID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(payloadJSON, &m); err != nil {
		return "", fmt.Errorf("failed to unmarshal payload for db_event_id injection: %w", err)
	}
	m["db_event_id"] = dbEventID

	enrichedBytes, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal enriched NOTIFY payload: %w", err)
	}

	return truncateIfNeeded(string(enrichedBytes))
}

// truncateIfNeeded returns the payload string as-is if it fits within
// PostgreSQL's 8000-byte NOTIFY limit, otherwise returns a minimal
// truncation envelope with only routing fields.
func truncateIfNeeded(payloadStr string) (string, error) {
	if len(payloadStr) <= 7900 {
		return payloadStr, nil
	}
	return buildTruncatedPayload([]byte(payloadStr))
}

// buildTruncatedPayload creates a minimal truncation envelope from the full
// JSON payload bytes, extracting only the routing fields the client needs
// to fetch the complete event from the database.
func buildTruncatedPayload(payloadBytes []byte) (string, error) {
	var routing struct {
		Type      string `json:"type"`
		RunID     string `json:"run_id,omitempty"`
		ThreadID  string `json:"thread_id,omitempty"`
		DBEventID *int64 `json:"db_event_id,omitempty"`
	}
	if err := json.Unmarshal(payloadBytes, &routing); err != nil {
		return "", fmt.Errorf("failed to extract routing fields for truncation: %w", err)
	}

	truncated := map[string]any{
		"type":      routing.Type,
		"truncated": true,
	}
	if routing.RunID != "" {
		truncated["run_id"] = routing.RunID
	}
	if routing.ThreadID != "" {
		truncated["thread_id"] = routing.ThreadID
	}
	if routing.DBEventID != nil {
		truncated["db_event_id"] = *routing.DBEventID
	}

	truncBytes, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("failed to marshal truncated payload: %w", err)
	}
	return string(truncBytes), nil
}
