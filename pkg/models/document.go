package models

import "time"

// Document is the canonical indexed unit. content_hash and
// unique_identifier_hash are each unique across the whole system — see
// pkg/hashing for how they're computed and pkg/store for the upsert
// invariants built on them.
type Document struct {
	ID                   int64          `json:"id"`
	SearchSpaceID        int64          `json:"search_space_id"`
	ConnectorID          int64          `json:"connector_id"`
	ConnectorType        ConnectorType  `json:"connector_type"`
	Title                string         `json:"title"`
	Content              string         `json:"content"` // summary when a long-context LLM is configured, else full text
	SourceURL            string         `json:"source_url,omitempty"`
	ContentHash          string         `json:"content_hash"`
	UniqueIdentifierHash string         `json:"unique_identifier_hash"`
	Metadata             map[string]any `json:"metadata"`
	OwnerID              string         `json:"owner_id"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// Chunk is an ordinal slice of a Document's full text, owned by it and
// replaced wholesale whenever the document's content changes.
type Chunk struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"document_id"`
	Ordinal    int    `json:"ordinal"`
	Content    string `json:"content"`
}

// UpsertOutcome is the result of a single document write through
// pkg/store's batched upsert.
type UpsertOutcome string

const (
	OutcomeInserted               UpsertOutcome = "inserted"
	OutcomeUpdated                UpsertOutcome = "updated"
	OutcomeSkippedUnchanged       UpsertOutcome = "skipped-unchanged"
	OutcomeSkippedDuplicateContent UpsertOutcome = "skipped-duplicate-content"
)

// DocumentWrite is a single document slot submitted to the store's batch
// writer: the canonical document fields plus its owned chunks and their
// embeddings (embeddings themselves live in pkg/vectorstore, keyed by the
// Postgres primary key assigned on insert/update).
type DocumentWrite struct {
	SearchSpaceID        int64
	ConnectorID          int64
	ConnectorType        ConnectorType
	SourceID             string
	Title                string
	Content              string
	SourceURL            string
	ContentHash          string
	UniqueIdentifierHash string
	Metadata             map[string]any
	OwnerID              string
	SummaryEmbedding     []float32
	Chunks               []ChunkWrite
}

// ChunkWrite is one chunk slot in a DocumentWrite.
type ChunkWrite struct {
	Ordinal   int
	Content   string
	Embedding []float32
}
