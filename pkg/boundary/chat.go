package boundary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/quarryhq/quarry/pkg/connector"
	"github.com/quarryhq/quarry/pkg/llmclient"
	"github.com/quarryhq/quarry/pkg/research"
	"github.com/quarryhq/quarry/pkg/retrieval"
)

// StringifiedInt unmarshals from either a JSON number or a JSON string of
// digits, matching the wire contract's "search_space_id accepts a
// stringified integer" rule without weakening the type everywhere else in
// the codebase that already treats search space ids as int64.
type StringifiedInt int64

func (i *StringifiedInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("boundary: search_space_id: %w", err)
	}
	*i = StringifiedInt(n)
	return nil
}

func (i StringifiedInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(i))
}

// ChatMessage is one turn in a ChatRequest's history.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required,max=10000"`
}

// ChatRequestData carries the retrieval/research knobs for one chat turn.
type ChatRequestData struct {
	SearchSpaceID               StringifiedInt `json:"search_space_id" validate:"required,gt=0"`
	ResearchMode                string         `json:"research_mode" validate:"required,oneof=QNA GENERAL DEEP DEEPER"`
	SelectedConnectors          []string       `json:"selected_connectors,omitempty" validate:"omitempty,dive,connector_name"`
	SearchMode                  string         `json:"search_mode" validate:"required,oneof=CHUNKS DOCUMENTS"`
	DocumentIDsToAddInContext   []int64        `json:"document_ids_to_add_in_context,omitempty"`
}

// ChatRequest is the body of POST /chat. Pagination fields default to a
// full unpaginated fetch when omitted (Limit's "1 through 1000" rule is
// only enforced when the caller sets it).
type ChatRequest struct {
	Messages []ChatMessage    `json:"messages" validate:"required,min=1,dive"`
	Data     ChatRequestData  `json:"data" validate:"required"`
	Skip     int              `json:"skip,omitempty" validate:"omitempty,gte=0"`
	Limit    int              `json:"limit,omitempty" validate:"omitempty,gte=1,lte=1000"`
}

// Validate runs struct-tag validation plus the one rule validator's tags
// can't express on their own: the conversation must end on a user turn, or
// there is nothing for the agent to respond to.
func (r *ChatRequest) Validate() error {
	if err := translate(validate.Struct(r)); err != nil {
		return err
	}
	if len(r.Messages) == 0 || r.Messages[len(r.Messages)-1].Role != "user" {
		return &ValidationError{Errors: []FieldError{
			{Field: "messages", Message: "last message must be from the user"},
		}}
	}
	return nil
}

// searchModeWire maps the wire contract's uppercase search_mode values to
// pkg/connector.SearchMode's lowercase constants.
func searchModeWire(s string) connector.SearchMode {
	switch s {
	case "DOCUMENTS":
		return connector.SearchModeDocuments
	default:
		return connector.SearchModeChunks
	}
}

// ChatHistory converts the request's prior turns to pkg/llmclient.Message,
// dropping the final (current) user turn — research.Request.ChatHistory is
// everything before the turn being answered.
func (r *ChatRequest) ChatHistory() []llmclient.Message {
	if len(r.Messages) <= 1 {
		return nil
	}
	prior := r.Messages[:len(r.Messages)-1]
	out := make([]llmclient.Message, len(prior))
	for i, m := range prior {
		out[i] = llmclient.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// UserQuery is the final message's content, the turn research.Run answers.
func (r *ChatRequest) UserQuery() string {
	return r.Messages[len(r.Messages)-1].Content
}

// ToResearchRequest builds a research.Request from the validated chat
// request. targets and userSelectedGroups are resolved by the caller
// (cmd/quarry looks SelectedConnectors up against the search space's
// configured connectors); this package only carries the wire shape, not a
// store dependency.
func (r *ChatRequest) ToResearchRequest(targets []retrieval.Target, userSelectedGroups []retrieval.Group) research.Request {
	return research.Request{
		UserQuery:          r.UserQuery(),
		ChatHistory:        r.ChatHistory(),
		Mode:               research.Mode(r.Data.ResearchMode),
		Targets:            targets,
		SearchMode:         searchModeWire(r.Data.SearchMode),
		UserSelectedGroups: userSelectedGroups,
		CitationsEnabled:   true,
	}
}
