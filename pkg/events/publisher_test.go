package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateIfNeeded(t *testing.T) {
	t.Run("passes through normal payload", func(t *testing.T) {
		payload, _ := json.Marshal(TaskLogAppendedPayload{
			Type:    EventTypeTaskLogAppended,
			RunID:   "abc-123",
			Message: "some content",
		})

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)
		assert.Contains(t, result, EventTypeTaskLogAppended)
		assert.Contains(t, result, "abc-123")
	})

	t.Run("truncates oversized payload", func(t *testing.T) {
		longContent := make([]byte, 8000)
		for i := range longContent {
			longContent[i] = 'a'
		}
		payload, _ := json.Marshal(TaskLogAppendedPayload{
			Type:    EventTypeTaskLogAppended,
			RunID:   "abc-123",
			Message: string(longContent),
		})

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)
		assert.Contains(t, result, "truncated")
		assert.Less(t, len(result), 8000)
	})

	t.Run("does not truncate small payload", func(t *testing.T) {
		payload, _ := json.Marshal(ResearchTextChunkPayload{
			Type:  EventTypeResearchTextChunk,
			Delta: "hello",
		})

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)
		assert.NotContains(t, result, "truncated")
	})

	t.Run("truncated payload preserves key fields", func(t *testing.T) {
		longContent := make([]byte, 8000)
		for i := range longContent {
			longContent[i] = 'x'
		}
		payload, _ := json.Marshal(TaskLogAppendedPayload{
			Type:    EventTypeTaskLogAppended,
			RunID:   "run-789",
			Message: string(longContent),
		})

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)

		assert.Contains(t, result, EventTypeTaskLogAppended)
		assert.Contains(t, result, "run-789")
		assert.Contains(t, result, `"truncated":true`)
		assert.NotContains(t, result, "xxxx")
	})

	t.Run("boundary: payload just under limit is not truncated", func(t *testing.T) {
		// Build a payload whose JSON is just under 7900 bytes.
		// Marshal an empty struct first to measure the overhead of the struct's
		// fixed fields (keys, quotes, separators). The 20-byte safety margin
		// accounts for JSON encoding variability: if new fields with non-zero
		// defaults are added to TaskLogAppendedPayload, the base overhead grows
		// and the margin prevents the test from flipping unexpectedly.
		base, _ := json.Marshal(TaskLogAppendedPayload{Type: "t"})
		contentSize := 7900 - len(base) - 20
		content := make([]byte, contentSize)
		for i := range content {
			content[i] = 'b'
		}
		payload, _ := json.Marshal(TaskLogAppendedPayload{Type: "t", Message: string(content)})
		require.LessOrEqual(t, len(payload), 7900, "test payload should be under limit")

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)
		assert.NotContains(t, result, "truncated")
	})

	t.Run("empty JSON object", func(t *testing.T) {
		result, err := truncateIfNeeded("{}")
		require.NoError(t, err)
		assert.Equal(t, "{}", result)
	})
}

func TestInjectDBEventIDAndTruncate(t *testing.T) {
	t.Run("injects db_event_id into normal payload", func(t *testing.T) {
		payload, _ := json.Marshal(RunStatusPayload{
			Type:  EventTypeRunStatus,
			RunID: "run-1",
		})

		result, err := injectDBEventIDAndTruncate(payload, 42)
		require.NoError(t, err)
		assert.Contains(t, result, `"db_event_id":42`)
		assert.Contains(t, result, "run-1")
	})

	t.Run("truncated payload preserves db_event_id and run_id", func(t *testing.T) {
		longContent := make([]byte, 8000)
		for i := range longContent {
			longContent[i] = 'x'
		}
		payload, _ := json.Marshal(TaskLogAppendedPayload{
			Type:    EventTypeTaskLogAppended,
			RunID:   "run-789",
			Message: string(longContent),
		})

		result, err := injectDBEventIDAndTruncate(payload, 42)
		require.NoError(t, err)
		assert.Contains(t, result, `"truncated":true`)
		assert.Contains(t, result, `"db_event_id":42`)
		assert.Contains(t, result, "run-789")
	})

	t.Run("truncated payload without thread_id omits it", func(t *testing.T) {
		longContent := make([]byte, 8000)
		for i := range longContent {
			longContent[i] = 'x'
		}
		payload, _ := json.Marshal(ResearchTextChunkPayload{
			Type:  EventTypeResearchTextChunk,
			Delta: string(longContent),
		})

		result, err := injectDBEventIDAndTruncate(payload, 99)
		require.NoError(t, err)
		assert.Contains(t, result, `"truncated":true`)
		assert.Contains(t, result, `"db_event_id":99`)
		assert.NotContains(t, result, "thread_id")
	})
}

func TestNewEventPublisher(t *testing.T) {
	publisher := NewEventPublisher(nil)
	assert.NotNil(t, publisher)
	assert.Nil(t, publisher.pool)
}

func TestRunStatusPayload_JSON(t *testing.T) {
	payload := RunStatusPayload{
		Type:        EventTypeRunStatus,
		RunID:       "run-456",
		ConnectorID: "connector-1",
		Status:      RunStatusRunning,
		Timestamp:   "2026-02-10T12:00:00Z",
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded RunStatusPayload
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, EventTypeRunStatus, decoded.Type)
	assert.Equal(t, "run-456", decoded.RunID)
	assert.Equal(t, "connector-1", decoded.ConnectorID)
	assert.Equal(t, RunStatusRunning, decoded.Status)
	assert.Equal(t, "2026-02-10T12:00:00Z", decoded.Timestamp)
}

func TestResearchSourcesPayload_JSON(t *testing.T) {
	payload := ResearchSourcesPayload{
		Type:     EventTypeResearchSources,
		ThreadID: "thread-100",
		Groups: []ResearchSourceGroup{
			{ID: "grp-1", Name: "Slack", Type: "slack", Sources: []ResearchSource{{ID: "src-1", Title: "x"}}},
		},
		Timestamp: "2026-02-13T10:00:00Z",
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded ResearchSourcesPayload
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, EventTypeResearchSources, decoded.Type)
	assert.Equal(t, "thread-100", decoded.ThreadID)
	require.Len(t, decoded.Groups, 1)
	assert.Equal(t, "Slack", decoded.Groups[0].Name)
}

func TestResearchFollowUpsPayload_JSON(t *testing.T) {
	payload := ResearchFollowUpsPayload{
		Type:      EventTypeResearchFollowUps,
		ThreadID:  "thread-200",
		FollowUps: []ResearchFollowUp{{ID: "fu-1", Question: "what next?"}},
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded ResearchFollowUpsPayload
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, EventTypeResearchFollowUps, decoded.Type)
	assert.Equal(t, "thread-200", decoded.ThreadID)
	require.Len(t, decoded.FollowUps, 1)
	assert.Equal(t, "what next?", decoded.FollowUps[0].Question)
}
