package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quarryhq/quarry/pkg/apperr"
	"github.com/quarryhq/quarry/pkg/models"
)

// CreateChatThread inserts a new ChatThread and returns its id.
func (s *Store) CreateChatThread(ctx context.Context, searchSpaceID int64, ownerID string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chat_threads (search_space_id, owner_id) VALUES ($1, $2) RETURNING id`,
		searchSpaceID, ownerID,
	).Scan(&id)
	if err != nil {
		return 0, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	return id, nil
}

// AppendChatMessage records one turn in a thread.
func (s *Store) AppendChatMessage(ctx context.Context, msg models.ChatMessage) (int64, error) {
	var eventTrace []byte
	if msg.EventTrace != nil {
		var err error
		eventTrace, err = json.Marshal(msg.EventTrace)
		if err != nil {
			return 0, fmt.Errorf("marshal event trace: %w", err)
		}
	}
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (thread_id, role, content, event_trace)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		msg.ThreadID, string(msg.Role), msg.Content, eventTrace,
	).Scan(&id)
	if err != nil {
		return 0, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	if _, err := s.pool.Exec(ctx, `UPDATE chat_threads SET updated_at = now() WHERE id = $1`, msg.ThreadID); err != nil {
		return 0, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	return id, nil
}

// ListChatMessages returns every message in threadID, oldest first.
func (s *Store) ListChatMessages(ctx context.Context, threadID int64) ([]models.ChatMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, thread_id, role, content, event_trace, created_at
		FROM chat_messages WHERE thread_id = $1 ORDER BY created_at ASC, id ASC`, threadID)
	if err != nil {
		return nil, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var role string
		var eventTrace []byte
		if err := rows.Scan(&m.ID, &m.ThreadID, &role, &m.Content, &eventTrace, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.Role = models.ChatRole(role)
		if len(eventTrace) > 0 {
			if err := json.Unmarshal(eventTrace, &m.EventTrace); err != nil {
				return nil, fmt.Errorf("unmarshal event trace: %w", err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return out, nil
}
