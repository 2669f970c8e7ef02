package events

// RunStatusPayload is the payload for connector_run.status events.
// Published on both RunChannel(runID) and GlobalConnectorRunsChannel
// whenever a connector run transitions between lifecycle states.
type RunStatusPayload struct {
	Type        string `json:"type"` // always EventTypeRunStatus
	RunID       string `json:"run_id"`
	ConnectorID string `json:"connector_id"`
	Status      string `json:"status"` // queued, running, succeeded, failed
	Timestamp   string `json:"timestamp"`
}

// TaskLogAppendedPayload is the payload for task_log.appended events.
// Published once per task log line written during a run.
type TaskLogAppendedPayload struct {
	Type      string `json:"type"` // always EventTypeTaskLogAppended
	RunID     string `json:"run_id"`
	Level     string `json:"level"` // info, warn, error
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ChatCreatedPayload is the payload for chat.created events.
type ChatCreatedPayload struct {
	Type      string `json:"type"` // always EventTypeChatCreated
	ThreadID  string `json:"thread_id"`
	Timestamp string `json:"timestamp"`
}

// ChatUserMessagePayload is the payload for chat.user_message events.
type ChatUserMessagePayload struct {
	Type      string `json:"type"` // always EventTypeChatUserMessage
	ThreadID  string `json:"thread_id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ResearchSource is one citable item inside a source group, matching the
// sources_delta wire contract exactly ({id, title, description, url}).
type ResearchSource struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// ResearchSourceGroup is one connector's contribution to a research
// answer's source list.
type ResearchSourceGroup struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Type    string           `json:"type"` // connector type
	Sources []ResearchSource `json:"sources"`
}

// ResearchFollowUp is one suggested next question.
type ResearchFollowUp struct {
	ID       string `json:"id"`
	Question string `json:"question"`
}

// ResearchTerminalInfoPayload is the payload for research.terminal_info
// events — a human-readable progress line, e.g. "Searching Slack...".
type ResearchTerminalInfoPayload struct {
	Type      string `json:"type"` // always EventTypeResearchTerminalInfo
	ThreadID  string `json:"thread_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ResearchSourcesPayload is the payload for research.sources events,
// published once retrieval resolves, before any answer text streams.
type ResearchSourcesPayload struct {
	Type      string                `json:"type"` // always EventTypeResearchSources
	ThreadID  string                `json:"thread_id"`
	Groups    []ResearchSourceGroup `json:"groups"`
	Timestamp string                `json:"timestamp"`
}

// ResearchTextChunkPayload is the payload for research.text_chunk events
// — transient, high-frequency, not replayed on catchup beyond the last
// persisted chunk boundary.
type ResearchTextChunkPayload struct {
	Type      string `json:"type"` // always EventTypeResearchTextChunk
	ThreadID  string `json:"thread_id"`
	Delta     string `json:"delta"`
	Timestamp string `json:"timestamp"`
}

// ResearchFollowUpsPayload is the payload for research.follow_ups
// events — terminal, published once after the answer finishes streaming.
type ResearchFollowUpsPayload struct {
	Type      string             `json:"type"` // always EventTypeResearchFollowUps
	ThreadID  string             `json:"thread_id"`
	FollowUps []ResearchFollowUp `json:"follow_ups"`
	Timestamp string             `json:"timestamp"`
}

// ResearchErrorPayload is the payload for research.error events. A
// non-fatal warning still lets the stream continue; a fatal error
// terminates it — Fatal discriminates the two for the client.
type ResearchErrorPayload struct {
	Type      string `json:"type"` // always EventTypeResearchError
	ThreadID  string `json:"thread_id"`
	Message   string `json:"message"`
	Fatal     bool   `json:"fatal"`
	Timestamp string `json:"timestamp"`
}
