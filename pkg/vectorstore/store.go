// Package vectorstore is the embedding half of the system's storage split
// (pkg/store holds everything relational; embeddings for a document's
// summary and its chunks live here, keyed by the Postgres ids pkg/store
// assigns). Grounded on Tangerg-lynx's qdrant VectorStore wrapper, adapted
// from its document.Document-centric shape to numeric chunk/document ids.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/quarryhq/quarry/pkg/apperr"
	"github.com/quarryhq/quarry/pkg/config"
)

const (
	chunkPayloadDocumentID    = "document_id"
	chunkPayloadSearchSpaceID = "search_space_id"
	chunkPayloadConnectorID   = "connector_id"
	chunkPayloadOrdinal       = "ordinal"
	chunkPayloadKind          = "kind"

	kindChunk   = "chunk"
	kindSummary = "summary"
)

// Store wraps a single Qdrant collection holding both chunk-level vectors
// and document-summary vectors, distinguished by the "kind" payload field
// so a single ANN index serves both chunk search and summary-level rerank.
type Store struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
}

// Open connects to Qdrant and ensures the configured collection exists,
// creating it with cosine distance and cfg.VectorSize dimensions if absent.
func Open(ctx context.Context, cfg config.VectorConfig, apiKey string) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Endpoint,
		APIKey: apiKey,
		UseTLS: apiKey != "",
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: new client: %w", err)
	}

	s := &Store{client: client, collection: cfg.CollectionName, vectorSize: uint64(cfg.VectorSize)}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("vectorstore: check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create collection %s: %w", s.collection, err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// ChunkVector is one chunk's embedding, addressed by its Postgres chunk id.
type ChunkVector struct {
	ChunkID       int64
	DocumentID    int64
	SearchSpaceID int64
	ConnectorID   int64
	Ordinal       int
	Vector        []float32
}

// UpsertChunkVectors writes one point per chunk, keyed by the chunk's
// Postgres id so a later re-chunk can delete the old set by document_id.
func (s *Store) UpsertChunkVectors(ctx context.Context, vectors []ChunkVector) error {
	if len(vectors) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(vectors))
	for _, v := range vectors {
		payload, err := qdrant.TryValueMap(map[string]any{
			chunkPayloadDocumentID:    v.DocumentID,
			chunkPayloadSearchSpaceID: v.SearchSpaceID,
			chunkPayloadConnectorID:   v.ConnectorID,
			chunkPayloadOrdinal:       v.Ordinal,
			chunkPayloadKind:          kindChunk,
		})
		if err != nil {
			return fmt.Errorf("vectorstore: build chunk payload: %w", err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(v.ChunkID)),
			Vectors: qdrant.NewVectors(v.Vector...),
			Payload: payload,
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return apperr.New(apperr.KindDatabaseTransient, true, fmt.Errorf("vectorstore: upsert chunks: %w", err))
	}
	return nil
}

// UpsertDocumentSummaryVector writes one point for a document's summary
// embedding, keyed by the document's Postgres id (a disjoint id space from
// chunk ids since chunks and documents are different Postgres sequences).
func (s *Store) UpsertDocumentSummaryVector(ctx context.Context, documentID, searchSpaceID, connectorID int64, vector []float32) error {
	payload, err := qdrant.TryValueMap(map[string]any{
		chunkPayloadDocumentID:    documentID,
		chunkPayloadSearchSpaceID: searchSpaceID,
		chunkPayloadConnectorID:   connectorID,
		chunkPayloadKind:          kindSummary,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: build summary payload: %w", err)
	}
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDNum(summaryPointID(documentID)),
			Vectors: qdrant.NewVectors(vector...),
			Payload: payload,
		}},
	})
	if err != nil {
		return apperr.New(apperr.KindDatabaseTransient, true, fmt.Errorf("vectorstore: upsert summary: %w", err))
	}
	return nil
}

// summaryPointID maps a document id into a point id disjoint from chunk
// point ids (chunk ids and document ids are drawn from different Postgres
// sequences but both start at 1, so a summary point would otherwise collide
// with the chunk carrying the same numeric id).
func summaryPointID(documentID int64) uint64 {
	const summaryIDOffset = uint64(1) << 62
	return summaryIDOffset + uint64(documentID)
}

// DeleteByDocumentID removes every chunk and summary point belonging to a
// document, called before UpsertChunkVectors when a document's content (and
// therefore its chunk set) changes.
func (s *Store) DeleteByDocumentID(ctx context.Context, documentID int64) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatchInt(chunkPayloadDocumentID, documentID),
		},
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return apperr.New(apperr.KindDatabaseTransient, true, fmt.Errorf("vectorstore: delete document %d: %w", documentID, err))
	}
	return nil
}

// SearchHit is one scored chunk or summary point returned by Search.
type SearchHit struct {
	ChunkID       int64 // zero for summary-kind hits
	DocumentID    int64
	SearchSpaceID int64
	ConnectorID   int64
	Ordinal       int
	Score         float32
	IsSummary     bool
}

// SearchRequest scopes a similarity search to one search space and
// optionally a connector subset.
type SearchRequest struct {
	Vector        []float32
	SearchSpaceID int64
	ConnectorIDs  []int64
	TopK          int
	SummaryOnly   bool
	ChunksOnly    bool
}

// Search runs a top-K nearest-neighbor query scoped by SearchRequest.
func (s *Store) Search(ctx context.Context, req SearchRequest) ([]SearchHit, error) {
	must := []*qdrant.Condition{qdrant.NewMatchInt(chunkPayloadSearchSpaceID, req.SearchSpaceID)}
	if len(req.ConnectorIDs) > 0 {
		must = append(must, qdrant.NewMatchInts(chunkPayloadConnectorID, req.ConnectorIDs...))
	}
	switch {
	case req.SummaryOnly:
		must = append(must, qdrant.NewMatchKeyword(chunkPayloadKind, kindSummary))
	case req.ChunksOnly:
		must = append(must, qdrant.NewMatchKeyword(chunkPayloadKind, kindChunk))
	}

	topK := uint64(req.TopK)
	if topK == 0 {
		topK = 10
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Filter:         &qdrant.Filter{Must: must},
		Limit:          &topK,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, apperr.New(apperr.KindDatabaseTransient, true, fmt.Errorf("vectorstore: query: %w", err))
	}

	hits := make([]SearchHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, hitFromPoint(p))
	}
	return hits, nil
}

func payloadInt(payload map[string]*qdrant.Value, key string) int64 {
	v, ok := payload[key]
	if !ok || v == nil {
		return 0
	}
	if iv, ok := v.Kind.(*qdrant.Value_IntegerValue); ok {
		return iv.IntegerValue
	}
	return 0
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if sv, ok := v.Kind.(*qdrant.Value_StringValue); ok {
		return sv.StringValue
	}
	return ""
}

func hitFromPoint(p *qdrant.ScoredPoint) SearchHit {
	payload := p.GetPayload()
	hit := SearchHit{
		Score:         p.GetScore(),
		DocumentID:    payloadInt(payload, chunkPayloadDocumentID),
		SearchSpaceID: payloadInt(payload, chunkPayloadSearchSpaceID),
		ConnectorID:   payloadInt(payload, chunkPayloadConnectorID),
		Ordinal:       int(payloadInt(payload, chunkPayloadOrdinal)),
		IsSummary:     payloadString(payload, chunkPayloadKind) == kindSummary,
	}
	if !hit.IsSummary {
		if id := p.GetId(); id != nil {
			hit.ChunkID = int64(id.GetNum())
		}
	}
	return hit
}

// Health pings Qdrant by checking the configured collection's existence.
func (s *Store) Health(ctx context.Context) error {
	_, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("vectorstore: health check: %w", err)
	}
	return nil
}
