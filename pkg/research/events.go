package research

import "github.com/quarryhq/quarry/pkg/retrieval"

// Event is the closed streaming-unit interface a run emits, mirroring
// pkg/llmclient's Chunk: one struct per kind, dispatched by eventType().
type Event interface {
	eventType() EventType
}

type EventType string

const (
	EventTypeTerminalInfo EventType = "terminal_info"
	EventTypeSources      EventType = "sources"
	EventTypeTextChunk    EventType = "text_chunk"
	EventTypeFollowUps    EventType = "follow_ups"
	EventTypeError        EventType = "error"
)

// TerminalInfoEvent is a human-readable progress line, e.g. "Searching
// Slack... found 6".
type TerminalInfoEvent struct{ Message string }

// SourcesEvent carries the source groups retrieval surfaced, emitted once
// per retrieval step (once for Q&A, once per section in report mode).
type SourcesEvent struct{ Groups []retrieval.Group }

// TextChunkEvent is one token (or small run of tokens) of answer/section
// prose.
type TextChunkEvent struct{ Delta string }

// FollowUpsEvent is the terminal follow-up-question list.
type FollowUpsEvent struct{ FollowUps []FollowUp }

// ErrorEvent is a warning or fatal error surfaced mid-stream. Fatal
// discriminates whether the client should expect the stream to continue.
type ErrorEvent struct {
	Message string
	Fatal   bool
}

func (TerminalInfoEvent) eventType() EventType { return EventTypeTerminalInfo }
func (SourcesEvent) eventType() EventType      { return EventTypeSources }
func (TextChunkEvent) eventType() EventType    { return EventTypeTextChunk }
func (FollowUpsEvent) eventType() EventType    { return EventTypeFollowUps }
func (ErrorEvent) eventType() EventType        { return EventTypeError }
