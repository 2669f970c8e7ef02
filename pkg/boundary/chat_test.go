package boundary

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringifiedIntUnmarshalsNumberOrString(t *testing.T) {
	var fromNumber StringifiedInt
	require.NoError(t, json.Unmarshal([]byte(`42`), &fromNumber))
	assert.Equal(t, StringifiedInt(42), fromNumber)

	var fromString StringifiedInt
	require.NoError(t, json.Unmarshal([]byte(`"42"`), &fromString))
	assert.Equal(t, StringifiedInt(42), fromString)

	var invalid StringifiedInt
	assert.Error(t, json.Unmarshal([]byte(`"not-a-number"`), &invalid))
}

func validChatRequest() *ChatRequest {
	return &ChatRequest{
		Messages: []ChatMessage{
			{Role: "user", Content: "what changed in the last release?"},
		},
		Data: ChatRequestData{
			SearchSpaceID:      5,
			ResearchMode:       "QNA",
			SelectedConnectors: []string{"slack-eng", "drive_docs"},
			SearchMode:         "CHUNKS",
		},
	}
}

func TestChatRequestValidate_Valid(t *testing.T) {
	req := validChatRequest()
	assert.NoError(t, req.Validate())
}

func TestChatRequestValidate_LastMessageMustBeUser(t *testing.T) {
	req := validChatRequest()
	req.Messages = append(req.Messages, ChatMessage{Role: "assistant", Content: "here is the answer"})

	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last message must be from the user")
}

func TestChatRequestValidate_RejectsUnsanitizedConnectorName(t *testing.T) {
	req := validChatRequest()
	req.Data.SelectedConnectors = []string{"slack; drop table"}

	err := req.Validate()
	require.Error(t, err)
}

func TestChatRequestValidate_RejectsOversizedContent(t *testing.T) {
	req := validChatRequest()
	big := make([]byte, 10001)
	for i := range big {
		big[i] = 'a'
	}
	req.Messages[0].Content = string(big)

	err := req.Validate()
	require.Error(t, err)
}

func TestChatRequestValidate_RejectsInvalidResearchMode(t *testing.T) {
	req := validChatRequest()
	req.Data.ResearchMode = "ULTRA"

	assert.Error(t, req.Validate())
}

func TestChatRequestValidate_PaginationBounds(t *testing.T) {
	req := validChatRequest()
	req.Limit = 1001
	assert.Error(t, req.Validate())

	req.Limit = 1000
	req.Skip = -1
	assert.Error(t, req.Validate())

	req.Skip = 0
	assert.NoError(t, req.Validate())
}

func TestChatRequestChatHistoryDropsFinalUserTurn(t *testing.T) {
	req := &ChatRequest{
		Messages: []ChatMessage{
			{Role: "user", Content: "first"},
			{Role: "assistant", Content: "reply"},
			{Role: "user", Content: "second"},
		},
	}

	history := req.ChatHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Content)
	assert.Equal(t, "reply", history[1].Content)
	assert.Equal(t, "second", req.UserQuery())
}
