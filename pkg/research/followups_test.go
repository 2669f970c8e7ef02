package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeFollowUps_MalformedJSONEmitsWarningAndEmptyList(t *testing.T) {
	sink := &eventSink{}
	deps := &Deps{FastLLM: &fakeLLMClient{responses: []string{"not json"}}, Emit: sink.collect}
	state := &State{Request: Request{UserQuery: "q"}, FinalAnswer: "the answer"}

	nodeFollowUps(context.Background(), state, deps)

	assert.Empty(t, state.FollowUps)
	assert.Len(t, sink.of(EventTypeFollowUps), 1)
	assert.Len(t, sink.of(EventTypeError), 1)
}

func TestNodeFollowUps_CapsAtFive(t *testing.T) {
	json := `{"further_questions": [
		{"id":"1","question":"a"},{"id":"2","question":"b"},{"id":"3","question":"c"},
		{"id":"4","question":"d"},{"id":"5","question":"e"},{"id":"6","question":"f"}
	]}`
	sink := &eventSink{}
	deps := &Deps{FastLLM: &fakeLLMClient{responses: []string{json}}, Emit: sink.collect}
	state := &State{Request: Request{UserQuery: "q"}, FinalAnswer: "the answer"}

	nodeFollowUps(context.Background(), state, deps)

	assert.Len(t, state.FollowUps, 5)
}
