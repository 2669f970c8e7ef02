package models

import "time"

// ChatRole is the speaker of a ChatMessage.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// ChatThread owns an ordered list of ChatMessages exchanged against one
// SearchSpace. Treated largely as an external boundary the research agent
// consumes/produces — see pkg/boundary.
type ChatThread struct {
	ID            int64     `json:"id"`
	SearchSpaceID int64     `json:"search_space_id"`
	OwnerID       string    `json:"owner_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ChatMessage is one turn in a ChatThread. Assistant messages produced by a
// research run additionally carry the run's emitted event trace for replay.
type ChatMessage struct {
	ID         int64          `json:"id"`
	ThreadID   int64          `json:"thread_id"`
	Role       ChatRole       `json:"role"`
	Content    string         `json:"content"`
	EventTrace map[string]any `json:"event_trace,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
