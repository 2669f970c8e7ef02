package vectorstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/config"
)

// Requires a reachable Qdrant instance; skipped otherwise, mirroring the
// pack's own qdrant store tests which skip without QDRANT_APIKEY.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	endpoint := os.Getenv("QUARRY_TEST_QDRANT_ENDPOINT")
	if endpoint == "" {
		t.Skip("QUARRY_TEST_QDRANT_ENDPOINT not set")
	}
	s, err := Open(context.Background(), config.VectorConfig{
		Endpoint:       endpoint,
		CollectionName: "quarry_test_" + t.Name(),
		VectorSize:     8,
	}, os.Getenv("QUARRY_TEST_QDRANT_APIKEY"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndSearchChunkVectors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpsertChunkVectors(ctx, []ChunkVector{
		{ChunkID: 1, DocumentID: 100, SearchSpaceID: 1, ConnectorID: 1, Ordinal: 0, Vector: []float32{1, 0, 0, 0, 0, 0, 0, 0}},
		{ChunkID: 2, DocumentID: 100, SearchSpaceID: 1, ConnectorID: 1, Ordinal: 1, Vector: []float32{0, 1, 0, 0, 0, 0, 0, 0}},
	})
	require.NoError(t, err)

	hits, err := s.Search(ctx, SearchRequest{
		Vector:        []float32{1, 0, 0, 0, 0, 0, 0, 0},
		SearchSpaceID: 1,
		TopK:          5,
		ChunksOnly:    true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, int64(100), hits[0].DocumentID)
}

func TestDeleteByDocumentIDRemovesChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChunkVectors(ctx, []ChunkVector{
		{ChunkID: 3, DocumentID: 200, SearchSpaceID: 1, ConnectorID: 1, Ordinal: 0, Vector: []float32{0, 0, 1, 0, 0, 0, 0, 0}},
	}))
	require.NoError(t, s.DeleteByDocumentID(ctx, 200))

	hits, err := s.Search(ctx, SearchRequest{
		Vector:        []float32{0, 0, 1, 0, 0, 0, 0, 0},
		SearchSpaceID: 1,
		TopK:          5,
		ChunksOnly:    true,
	})
	require.NoError(t, err)
	for _, h := range hits {
		require.NotEqual(t, int64(200), h.DocumentID)
	}
}
