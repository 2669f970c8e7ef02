package boundary

import (
	"encoding/json"
	"fmt"

	"github.com/Tangerg/lynx/sse"

	"github.com/quarryhq/quarry/pkg/research"
	"github.com/quarryhq/quarry/pkg/retrieval"
)

// Wire event names for the chat stream's typed SSE union.
const (
	wireEventTerminalInfo  = "terminal_info_delta"
	wireEventSources       = "sources_delta"
	wireEventTextChunk     = "text_chunk"
	wireEventFollowUps     = "further_questions_delta"
	wireEventError         = "error"
)

// SourceRef is one citable source in a SourcesDeltaPayload group. Title/
// Description/URL are best-effort: pkg/retrieval.Group only carries a
// SourceIDs list, not per-source display metadata, so those three fields
// are left empty here rather than invented. See DESIGN.md for the
// decision — a document-metadata lookup could fill them in later without
// changing this wire shape.
type SourceRef struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// SourceGroupPayload is one connector's surviving source group.
type SourceGroupPayload struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Type    string      `json:"type"`
	Sources []SourceRef `json:"sources"`
}

// SourcesDeltaPayload is the JSON body of a sources_delta event.
type SourcesDeltaPayload struct {
	Groups []SourceGroupPayload `json:"groups"`
}

// TerminalInfoPayload is the JSON body of a terminal_info_delta event.
type TerminalInfoPayload struct {
	Message string `json:"message"`
}

// TextChunkPayload is the JSON body of a text_chunk event.
type TextChunkPayload struct {
	Delta string `json:"delta"`
}

// FollowUpPayload is one suggested next question.
type FollowUpPayload struct {
	ID       string `json:"id"`
	Question string `json:"question"`
}

// FollowUpsDeltaPayload is the JSON body of a further_questions_delta event.
type FollowUpsDeltaPayload struct {
	FollowUps []FollowUpPayload `json:"follow_ups"`
}

// ErrorPayload is the JSON body of an error event. Fatal discriminates
// whether the caller should expect more events after this one.
type ErrorPayload struct {
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

var sseEncoder = sse.NewEncoder()

// EncodeEvent converts one internal research.Event into a wire SSE frame,
// ready to write directly to a streaming HTTP response body.
func EncodeEvent(seq int, ev research.Event) ([]byte, error) {
	name, payload, err := wireEvent(ev)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("boundary: marshal %s payload: %w", name, err)
	}
	msg := &sse.Message{
		ID:    fmt.Sprintf("%d", seq),
		Event: name,
		Data:  data,
	}
	return sseEncoder.Encode(msg)
}

func wireEvent(ev research.Event) (string, any, error) {
	switch e := ev.(type) {
	case research.TerminalInfoEvent:
		return wireEventTerminalInfo, TerminalInfoPayload{Message: e.Message}, nil
	case research.SourcesEvent:
		return wireEventSources, SourcesDeltaPayload{Groups: sourceGroupPayloads(e.Groups)}, nil
	case research.TextChunkEvent:
		return wireEventTextChunk, TextChunkPayload{Delta: e.Delta}, nil
	case research.FollowUpsEvent:
		return wireEventFollowUps, followUpsPayload(e.FollowUps), nil
	case research.ErrorEvent:
		return wireEventError, ErrorPayload{Message: e.Message, Fatal: e.Fatal}, nil
	default:
		return "", nil, fmt.Errorf("boundary: unrecognized research event %T", ev)
	}
}

func sourceGroupPayloads(groups []retrieval.Group) []SourceGroupPayload {
	out := make([]SourceGroupPayload, len(groups))
	for i, g := range groups {
		sources := make([]SourceRef, len(g.SourceIDs))
		for j, id := range g.SourceIDs {
			sources[j] = SourceRef{ID: id}
		}
		out[i] = SourceGroupPayload{
			ID:      g.Key.GroupID,
			Name:    g.ConnectorName,
			Type:    string(g.Key.Type),
			Sources: sources,
		}
	}
	return out
}

func followUpsPayload(followUps []research.FollowUp) FollowUpsDeltaPayload {
	out := make([]FollowUpPayload, len(followUps))
	for i, f := range followUps {
		out[i] = FollowUpPayload{ID: f.ID, Question: f.Question}
	}
	return FollowUpsDeltaPayload{FollowUps: out}
}

// IsFatal reports whether ev is an ErrorEvent that should terminate the
// stream, as opposed to a non-fatal warning the caller should surface but
// keep listening past.
func IsFatal(ev research.Event) bool {
	e, ok := ev.(research.ErrorEvent)
	return ok && e.Fatal
}
