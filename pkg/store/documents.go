package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quarryhq/quarry/pkg/apperr"
	"github.com/quarryhq/quarry/pkg/models"
)

const uniqueViolation = "23505"

// UpsertResult is the per-document outcome of a batch flush.
type UpsertResult struct {
	DocumentID int64
	Outcome    models.UpsertOutcome
}

// BatchWriter accumulates DocumentWrite slots and flushes them in
// BatchFlushEvery-sized transactions as a single content-addressed
// upsert. Embeddings are never written here; callers persist SummaryEmbedding /
// ChunkWrite.Embedding to pkg/vectorstore keyed by the returned DocumentID.
type BatchWriter struct {
	store     *Store
	flushSize int
	pending   []models.DocumentWrite
}

// NewBatchWriter builds a BatchWriter that flushes every flushSize slots.
func NewBatchWriter(s *Store, flushSize int) *BatchWriter {
	if flushSize < 1 {
		flushSize = 1
	}
	return &BatchWriter{store: s, flushSize: flushSize}
}

// Add queues a document for write, flushing automatically once the batch
// reaches its configured size.
func (b *BatchWriter) Add(ctx context.Context, w models.DocumentWrite) ([]UpsertResult, error) {
	b.pending = append(b.pending, w)
	if len(b.pending) < b.flushSize {
		return nil, nil
	}
	return b.Flush(ctx)
}

// Flush writes every queued document and clears the queue, regardless of
// whether it has reached flushSize. Call once more after the last Add to
// drain a partial batch.
func (b *BatchWriter) Flush(ctx context.Context) ([]UpsertResult, error) {
	if len(b.pending) == 0 {
		return nil, nil
	}
	batch := b.pending
	b.pending = nil
	return b.store.UpsertDocuments(ctx, batch)
}

// UpsertDocuments writes a batch of documents inside one transaction, using
// a SAVEPOINT per document so a unique-constraint race on one slot rolls
// back only that slot rather than the whole batch.
func (s *Store) UpsertDocuments(ctx context.Context, batch []models.DocumentWrite) ([]UpsertResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.New(apperr.KindDatabaseTransient, true, fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	results := make([]UpsertResult, 0, len(batch))
	for i, w := range batch {
		res, err := upsertOne(ctx, tx, i, w)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.New(apperr.KindDatabaseTransient, true, fmt.Errorf("commit: %w", err))
	}
	return results, nil
}

func upsertOne(ctx context.Context, tx pgx.Tx, index int, w models.DocumentWrite) (UpsertResult, error) {
	savepoint := fmt.Sprintf("doc_%d", index)
	if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
		return UpsertResult{}, apperr.New(apperr.KindDatabaseTransient, true, fmt.Errorf("savepoint: %w", err))
	}

	res, err := upsertWithinSavepoint(ctx, tx, w)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
				return UpsertResult{}, apperr.New(apperr.KindDatabaseTransient, true, fmt.Errorf("rollback to savepoint: %w", rbErr))
			}
			return UpsertResult{Outcome: models.OutcomeSkippedDuplicateContent}, nil
		}
		return UpsertResult{}, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
		return UpsertResult{}, apperr.New(apperr.KindDatabaseTransient, true, fmt.Errorf("release savepoint: %w", err))
	}
	return res, nil
}

func upsertWithinSavepoint(ctx context.Context, tx pgx.Tx, w models.DocumentWrite) (UpsertResult, error) {
	var existingID int64
	var existingContentHash string
	err := tx.QueryRow(ctx,
		`SELECT id, content_hash FROM documents WHERE unique_identifier_hash = $1`,
		w.UniqueIdentifierHash,
	).Scan(&existingID, &existingContentHash)

	switch {
	case err == nil:
		if existingContentHash == w.ContentHash {
			return UpsertResult{DocumentID: existingID, Outcome: models.OutcomeSkippedUnchanged}, nil
		}
		if dup, dupErr := contentHashUsedElsewhere(ctx, tx, w.ContentHash, existingID); dupErr != nil {
			return UpsertResult{}, dupErr
		} else if dup {
			return UpsertResult{DocumentID: existingID, Outcome: models.OutcomeSkippedDuplicateContent}, nil
		}
		if err := updateDocument(ctx, tx, existingID, w); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{DocumentID: existingID, Outcome: models.OutcomeUpdated}, nil

	case errors.Is(err, pgx.ErrNoRows):
		if dup, dupErr := contentHashUsedElsewhere(ctx, tx, w.ContentHash, 0); dupErr != nil {
			return UpsertResult{}, dupErr
		} else if dup {
			return UpsertResult{Outcome: models.OutcomeSkippedDuplicateContent}, nil
		}
		id, err := insertDocument(ctx, tx, w)
		if err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{DocumentID: id, Outcome: models.OutcomeInserted}, nil

	default:
		return UpsertResult{}, err
	}
}

func contentHashUsedElsewhere(ctx context.Context, tx pgx.Tx, contentHash string, excludeID int64) (bool, error) {
	var count int
	err := tx.QueryRow(ctx,
		`SELECT count(*) FROM documents WHERE content_hash = $1 AND id != $2`,
		contentHash, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check content hash: %w", err)
	}
	return count > 0, nil
}

func insertDocument(ctx context.Context, tx pgx.Tx, w models.DocumentWrite) (int64, error) {
	metadata, err := json.Marshal(w.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}
	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO documents
			(search_space_id, connector_id, connector_type, source_id, title, content,
			 source_url, content_hash, unique_identifier_hash, metadata, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		w.SearchSpaceID, w.ConnectorID, string(w.ConnectorType), w.SourceID, w.Title, w.Content,
		w.SourceURL, w.ContentHash, w.UniqueIdentifierHash, metadata, w.OwnerID,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	if err := replaceChunks(ctx, tx, id, w.Chunks); err != nil {
		return 0, err
	}
	return id, nil
}

func updateDocument(ctx context.Context, tx pgx.Tx, id int64, w models.DocumentWrite) error {
	metadata, err := json.Marshal(w.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE documents
		SET title = $1, content = $2, source_url = $3, content_hash = $4,
		    metadata = $5, updated_at = now()
		WHERE id = $6`,
		w.Title, w.Content, w.SourceURL, w.ContentHash, metadata, id,
	)
	if err != nil {
		return err
	}
	return replaceChunks(ctx, tx, id, w.Chunks)
}

func replaceChunks(ctx context.Context, tx pgx.Tx, documentID int64, chunks []models.ChunkWrite) error {
	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	for _, c := range chunks {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chunks (document_id, ordinal, content) VALUES ($1, $2, $3)`,
			documentID, c.Ordinal, c.Content,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Ordinal, err)
		}
	}
	return nil
}

// LookupDocumentID returns the id of the document matching uniqueIdentifierHash,
// and whether one was found — used by connectors to decide sync strategy
// before running the full pipeline.
func (s *Store) LookupDocumentID(ctx context.Context, uniqueIdentifierHash string) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM documents WHERE unique_identifier_hash = $1`, uniqueIdentifierHash,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	return id, true, nil
}

// FindBySourceID returns the id of any document already indexed for
// sourceID within searchSpaceID, regardless of which connector indexed it —
// unlike LookupDocumentID, this is NOT scoped by connector type. A full
// scan's early-duplicate-skip step needs this: the same upstream item (e.g.
// a Drive file reached both as a file Slack shared and as a native Drive
// entry) must be recognized as already indexed no matter which connector
// saw it first.
func (s *Store) FindBySourceID(ctx context.Context, searchSpaceID int64, sourceID string) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM documents WHERE search_space_id = $1 AND source_id = $2 LIMIT 1`,
		searchSpaceID, sourceID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	return id, true, nil
}
