// Package research runs the branching agent that turns one chat turn into
// either a direct Q&A answer or a multi-section report: reformulate the
// query against chat history, retrieve and rerank context, stream the
// answer with inline citations, then suggest follow-up questions.
//
// The branch graph is a hand-written interpreter over a small enum of node
// kinds rather than a workflow-runtime dependency — the node contract
// (inputs/outputs on a shared State) is what matters, not the mechanism
// threading them together.
package research

import (
	"context"
	"fmt"

	"github.com/quarryhq/quarry/pkg/connector"
	"github.com/quarryhq/quarry/pkg/hashing"
	"github.com/quarryhq/quarry/pkg/llmclient"
	"github.com/quarryhq/quarry/pkg/retrieval"
)

// Mode selects which branch a run takes.
type Mode string

const (
	ModeQnA     Mode = "QNA"
	ModeGeneral Mode = "GENERAL"
	ModeDeep    Mode = "DEEP"
	ModeDeeper  Mode = "DEEPER"
)

// sectionTarget maps a report mode to the number of sections
// write_answer_outline asks the strategic LLM for. QNA never reaches this
// path. Chosen to scale visibly with mode name without a config knob no
// caller has asked to tune yet.
var sectionTarget = map[Mode]int{
	ModeGeneral: 3,
	ModeDeep:    6,
	ModeDeeper:  9,
}

// Request is one research turn's input.
type Request struct {
	UserQuery          string
	ChatHistory        []llmclient.Message
	Mode               Mode
	Targets            []retrieval.Target
	SearchMode         connector.SearchMode
	UserSelectedGroups []retrieval.Group
	CitationsEnabled   bool
	CustomInstructions string
	Language           string
}

// State is the bag every node reads from and writes to as the run
// progresses. Exported so tests can assert on intermediate fields without
// re-running the whole graph.
type State struct {
	Request

	ReformulatedQuery string

	Outline  []OutlineSection
	Sections []SectionResult

	Groups  []retrieval.Group
	Chunks  []retrieval.Chunk

	FinalAnswer string
	FollowUps   []FollowUp
}

// OutlineSection is one entry from write_answer_outline's JSON schema.
type OutlineSection struct {
	SectionID    string   `json:"section_id"`
	SectionTitle string   `json:"section_title"`
	Questions    []string `json:"questions"`
}

// SectionResult is one finished section's prose plus the source groups its
// retrieval step surfaced, remembered for follow-up generation.
type SectionResult struct {
	SectionID string
	Title     string
	Text      string
	Groups    []retrieval.Group
}

// FollowUp is one suggested next question.
type FollowUp struct {
	ID       string
	Question string
}

// Deps wires the LLM slots, retrieval, and packing collaborators a run
// needs. FastLLM backs reformulation and follow-ups, StrategicLLM backs
// outline generation, LongContextLLM backs answer/section prose — mirroring
// a SearchSpace's three named LLM config slots.
type Deps struct {
	FastLLM        llmclient.Client
	StrategicLLM   llmclient.Client
	LongContextLLM llmclient.Client

	Reranker       retrieval.Reranker
	Packer         *hashing.Packer
	ContextWindow  int
	ReservedOutput int

	TopK           int
	MaxConcurrency int

	Emit func(Event)
}

func (d *Deps) emit(ev Event) {
	if d.Emit != nil {
		d.Emit(ev)
	}
}

// Run drives the branch graph to completion and returns the final state.
// Events are delivered incrementally via deps.Emit as the run progresses;
// the returned State is the final snapshot once the channel would close.
func Run(ctx context.Context, req Request, deps *Deps) (*State, error) {
	state := &State{Request: req}

	if err := nodeReformulate(ctx, state, deps); err != nil {
		return nil, fmt.Errorf("research: reformulate: %w", err)
	}

	if req.Mode == ModeQnA {
		if err := nodeQnA(ctx, state, deps); err != nil {
			return nil, fmt.Errorf("research: qna: %w", err)
		}
	} else {
		if err := nodeOutline(ctx, state, deps); err != nil {
			return nil, fmt.Errorf("research: outline: %w", err)
		}
		if err := nodeSections(ctx, state, deps); err != nil {
			return nil, fmt.Errorf("research: sections: %w", err)
		}
	}

	nodeFollowUps(ctx, state, deps)

	return state, nil
}
