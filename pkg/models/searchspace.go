// Package models holds the plain-struct entity types persisted by pkg/store.
// There is no ORM-generated client here (see DESIGN.md's "ent" entry) —
// these structs are hand-written and map directly onto the SQL migrations
// embedded in pkg/store/migrations.
package models

import "time"

// SearchSpace is the top-level container a user's connectors and documents
// belong to. Deleting a search space cascades to every Connector and
// Document owned by it.
type SearchSpace struct {
	ID                 int64     `json:"id"`
	OwnerID            string    `json:"owner_id"`
	Name               string    `json:"name"`
	CitationsEnabled   bool      `json:"citations_enabled"`
	QnACustomInstructs string    `json:"qna_custom_instructions,omitempty"`
	LongContextLLMID   int64     `json:"long_context_llm_id"`
	FastLLMID          int64     `json:"fast_llm_id"`
	StrategicLLMID     int64     `json:"strategic_llm_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
