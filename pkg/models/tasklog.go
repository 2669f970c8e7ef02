package models

import "time"

// TaskLogStatus is the lifecycle status of a TaskLogEntry. Runs may emit
// many "progress" rows but exactly one terminal row (success or failure).
type TaskLogStatus string

const (
	TaskLogStatusStarted  TaskLogStatus = "started"
	TaskLogStatusProgress TaskLogStatus = "progress"
	TaskLogStatusSuccess  TaskLogStatus = "success"
	TaskLogStatusFailure  TaskLogStatus = "failure"
)

// IsTerminal reports whether this status ends a run.
func (s TaskLogStatus) IsTerminal() bool {
	return s == TaskLogStatusSuccess || s == TaskLogStatusFailure
}

// TaskLogEntry is a durable per-run record used for UI status, retries, and
// audits. Task name is a stable identifier like "index_connector";
// source is the connector type or "scheduler".
type TaskLogEntry struct {
	ID            int64          `json:"id"`
	RunID         string         `json:"run_id"`
	TaskName      string         `json:"task_name"`
	Source        string         `json:"source"`
	SearchSpaceID int64          `json:"search_space_id"`
	ConnectorID   *int64         `json:"connector_id,omitempty"`
	Status        TaskLogStatus  `json:"status"`
	Message       string         `json:"message,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	DurationMS    *int64         `json:"duration_ms,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
