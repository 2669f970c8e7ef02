// Package connector defines the capability-probing adapter contract the
// ingestion pipeline drives every connector type through, plus the
// concrete adapters and the registry that binds a models.ConnectorType to
// a Factory.
package connector

import (
	"context"

	"github.com/quarryhq/quarry/pkg/models"
)

// ChangeKind classifies one entry in a ListDelta result.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
)

// Change is one delta-cursor entry.
type Change struct {
	Kind     ChangeKind
	SourceID string
	Payload  map[string]any
}

// Item is one raw unit yielded by ListFull or resolved from a Change,
// carrying enough to drive FetchContent without a second round trip when
// the adapter already has the payload in hand.
type Item struct {
	SourceID string
	Title    string
	Hint     map[string]any
}

// SearchMode controls the granularity search() returns.
type SearchMode string

const (
	SearchModeChunks    SearchMode = "chunks"
	SearchModeDocuments SearchMode = "documents"
)

// SearchRecord is one chunk-like result from an adapter's search contract.
type SearchRecord struct {
	SourceID string
	Title    string
	Text     string
	Score    float32
	Metadata map[string]any
}

// SearchResult groups records under the source group retrieval dedups by.
type SearchResult struct {
	GroupID string
	Records []SearchRecord
}

// Adapter is the minimal contract every connector type satisfies: it can
// describe itself and accept a retry observer. Every other capability
// (Validator, DeltaLister, FullLister, ContentFetcher, Searcher,
// MarkdownFormatter) is optional and probed with a type assertion — an
// adapter implements whichever subset it supports.
type Adapter interface {
	Type() models.ConnectorType
}

// Validator verifies credentials at attach time.
type Validator interface {
	Validate(ctx context.Context, config map[string]any) error
}

// DeltaLister returns changes since cursor and the new cursor. Adapters
// that cannot provide a delta cursor simply don't implement this interface;
// the pipeline probes with a type assertion and falls back to ListFull.
type DeltaLister interface {
	ListDelta(ctx context.Context, cursor string) ([]Change, string, error)
}

// FullLister yields raw items over a window (or the adapter's own
// selection descriptor, e.g. Drive folder ids carried in config).
type FullLister interface {
	ListFull(ctx context.Context, window DateRange) ([]Item, error)
}

// ContentFetcher returns canonical text for one item, routing binary MIME
// types through an ETL client and decoding text types directly.
type ContentFetcher interface {
	FetchContent(ctx context.Context, sourceID string, hint map[string]any) (string, error)
}

// Searcher backs the retrieval fan-out.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, mode SearchMode) (SearchResult, error)
}

// MarkdownFormatter renders an adapter's raw content to markdown,
// preserving headings, speaker/author names, timestamps, comments, links.
type MarkdownFormatter interface {
	FormatMarkdown(raw string) (string, error)
}
