package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatusPayload(t *testing.T) {
	t.Run("creates run status payload with all fields", func(t *testing.T) {
		payload := RunStatusPayload{
			Type:        EventTypeRunStatus,
			RunID:       "run-123",
			ConnectorID: "connector-abc",
			Status:      RunStatusRunning,
			Timestamp:   time.Now().Format(time.RFC3339Nano),
		}

		assert.Equal(t, EventTypeRunStatus, payload.Type)
		assert.Equal(t, "run-123", payload.RunID)
		assert.Equal(t, "connector-abc", payload.ConnectorID)
		assert.Equal(t, RunStatusRunning, payload.Status)
		assert.NotEmpty(t, payload.Timestamp)
	})

	t.Run("supports all run statuses", func(t *testing.T) {
		statuses := []string{RunStatusQueued, RunStatusRunning, RunStatusSucceeded, RunStatusFailed}
		for _, status := range statuses {
			payload := RunStatusPayload{
				Type:      EventTypeRunStatus,
				RunID:     "run-456",
				Status:    status,
				Timestamp: time.Now().Format(time.RFC3339Nano),
			}
			assert.Equal(t, status, payload.Status)
		}
	})
}

func TestTaskLogAppendedPayload(t *testing.T) {
	t.Run("creates task log payload", func(t *testing.T) {
		payload := TaskLogAppendedPayload{
			Type:      EventTypeTaskLogAppended,
			RunID:     "run-123",
			Level:     "info",
			Message:   "fetched 42 items from Slack",
			Timestamp: time.Now().Format(time.RFC3339Nano),
		}

		assert.Equal(t, EventTypeTaskLogAppended, payload.Type)
		assert.Equal(t, "run-123", payload.RunID)
		assert.Equal(t, "info", payload.Level)
		assert.Contains(t, payload.Message, "Slack")
	})

	t.Run("supports warn and error levels", func(t *testing.T) {
		for _, level := range []string{"info", "warn", "error"} {
			payload := TaskLogAppendedPayload{
				Type:    EventTypeTaskLogAppended,
				RunID:   "run-789",
				Level:   level,
				Message: "line",
			}
			assert.Equal(t, level, payload.Level)
		}
	})
}

func TestChatCreatedAndUserMessagePayloads(t *testing.T) {
	created := ChatCreatedPayload{
		Type:      EventTypeChatCreated,
		ThreadID:  "thread-1",
		Timestamp: time.Now().Format(time.RFC3339Nano),
	}
	assert.Equal(t, EventTypeChatCreated, created.Type)
	assert.Equal(t, "thread-1", created.ThreadID)

	msg := ChatUserMessagePayload{
		Type:      EventTypeChatUserMessage,
		ThreadID:  "thread-1",
		Content:   "what changed in the last sync?",
		Timestamp: time.Now().Format(time.RFC3339Nano),
	}
	assert.Equal(t, EventTypeChatUserMessage, msg.Type)
	assert.Equal(t, "what changed in the last sync?", msg.Content)
}

func TestResearchTerminalInfoPayload(t *testing.T) {
	payload := ResearchTerminalInfoPayload{
		Type:      EventTypeResearchTerminalInfo,
		ThreadID:  "thread-1",
		Message:   "Searching Slack...",
		Timestamp: time.Now().Format(time.RFC3339Nano),
	}
	assert.Equal(t, EventTypeResearchTerminalInfo, payload.Type)
	assert.NotEmpty(t, payload.Message)
}

func TestResearchSourcesPayload(t *testing.T) {
	t.Run("carries one group per connector with its sources", func(t *testing.T) {
		payload := ResearchSourcesPayload{
			Type:     EventTypeResearchSources,
			ThreadID: "thread-1",
			Groups: []ResearchSourceGroup{
				{
					ID:   "grp-1",
					Name: "Slack",
					Type: "slack",
					Sources: []ResearchSource{
						{ID: "src-1", Title: "incident thread", URL: "https://slack.example/src-1"},
					},
				},
			},
			Timestamp: time.Now().Format(time.RFC3339Nano),
		}

		require.Len(t, payload.Groups, 1)
		require.Len(t, payload.Groups[0].Sources, 1)
		assert.Equal(t, "slack", payload.Groups[0].Type)
		assert.Equal(t, "src-1", payload.Groups[0].Sources[0].ID)
	})

	t.Run("description and url are optional", func(t *testing.T) {
		src := ResearchSource{ID: "src-2", Title: "untitled"}
		assert.Empty(t, src.Description)
		assert.Empty(t, src.URL)
	})
}

func TestResearchTextChunkPayload(t *testing.T) {
	chunks := []string{"The ", "answer ", "is ", "42."}

	var payloads []ResearchTextChunkPayload
	for _, delta := range chunks {
		payloads = append(payloads, ResearchTextChunkPayload{
			Type:     EventTypeResearchTextChunk,
			ThreadID: "thread-1",
			Delta:    delta,
		})
	}

	assert.Len(t, payloads, 4)
	assert.Equal(t, "The ", payloads[0].Delta)
	assert.Equal(t, "42.", payloads[3].Delta)
}

func TestResearchFollowUpsPayload(t *testing.T) {
	payload := ResearchFollowUpsPayload{
		Type:     EventTypeResearchFollowUps,
		ThreadID: "thread-1",
		FollowUps: []ResearchFollowUp{
			{ID: "fu-1", Question: "What about last week?"},
			{ID: "fu-2", Question: "Who owns this connector?"},
		},
	}

	require.Len(t, payload.FollowUps, 2)
	assert.Equal(t, "fu-1", payload.FollowUps[0].ID)
}

func TestResearchErrorPayload(t *testing.T) {
	t.Run("non-fatal warning", func(t *testing.T) {
		payload := ResearchErrorPayload{
			Type:     EventTypeResearchError,
			ThreadID: "thread-1",
			Message:  "Jira adapter rate limited, continuing with partial results",
			Fatal:    false,
		}
		assert.False(t, payload.Fatal)
	})

	t.Run("fatal error terminates the stream", func(t *testing.T) {
		payload := ResearchErrorPayload{
			Type:     EventTypeResearchError,
			ThreadID: "thread-1",
			Message:  "LLM provider unreachable",
			Fatal:    true,
		}
		assert.True(t, payload.Fatal)
	})
}

func TestPayloadTypes(t *testing.T) {
	t.Run("all payload types have correct type field", func(t *testing.T) {
		assert.Equal(t, EventTypeRunStatus, RunStatusPayload{Type: EventTypeRunStatus}.Type)
		assert.Equal(t, EventTypeTaskLogAppended, TaskLogAppendedPayload{Type: EventTypeTaskLogAppended}.Type)
		assert.Equal(t, EventTypeChatCreated, ChatCreatedPayload{Type: EventTypeChatCreated}.Type)
		assert.Equal(t, EventTypeChatUserMessage, ChatUserMessagePayload{Type: EventTypeChatUserMessage}.Type)
		assert.Equal(t, EventTypeResearchTerminalInfo, ResearchTerminalInfoPayload{Type: EventTypeResearchTerminalInfo}.Type)
		assert.Equal(t, EventTypeResearchSources, ResearchSourcesPayload{Type: EventTypeResearchSources}.Type)
		assert.Equal(t, EventTypeResearchTextChunk, ResearchTextChunkPayload{Type: EventTypeResearchTextChunk}.Type)
		assert.Equal(t, EventTypeResearchFollowUps, ResearchFollowUpsPayload{Type: EventTypeResearchFollowUps}.Type)
		assert.Equal(t, EventTypeResearchError, ResearchErrorPayload{Type: EventTypeResearchError}.Type)
	})
}
