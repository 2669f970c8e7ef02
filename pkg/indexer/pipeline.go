// Package indexer implements the generic per-connector ingestion pipeline
// that drives a pkg/connector.Adapter through pkg/hashing and persists the
// result through pkg/store and pkg/vectorstore, emitting progress through
// pkg/events. The run lifecycle (open run, iterate, heartbeat, terminate)
// follows the same shape as any long-lived session orchestration loop;
// the delta/full decision and batched-commit semantics are this package's
// own ingestion policy.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quarryhq/quarry/pkg/apperr"
	"github.com/quarryhq/quarry/pkg/connector"
	"github.com/quarryhq/quarry/pkg/events"
	"github.com/quarryhq/quarry/pkg/hashing"
	"github.com/quarryhq/quarry/pkg/models"
	"github.com/quarryhq/quarry/pkg/store"
	"github.com/quarryhq/quarry/pkg/vectorstore"
)

// maxErrorsKept bounds the per-item error list carried in a RunSummary so
// a connector yielding thousands of malformed items doesn't blow up the
// task log row.
const maxErrorsKept = 50

// heartbeatInterval is how often a long-running item loop touches the
// task log with a progress row.
const heartbeatInterval = 30 * time.Second

// batchFlushEvery is the fixed write-batch size for document upserts.
const batchFlushEvery = 10

// Embedder is the narrow slice of pkg/llmclient.Client the pipeline needs:
// turning chunk/summary text into vectors. Declared locally, the same
// dependency-inversion move pkg/hashing.Completer makes, so indexer doesn't
// import llmclient just for one method.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorWriter is the slice of vectorstore.Store the pipeline writes
// through — narrowed so tests can substitute a fake without standing up
// Qdrant.
type VectorWriter interface {
	UpsertChunkVectors(ctx context.Context, vectors []vectorstore.ChunkVector) error
	UpsertDocumentSummaryVector(ctx context.Context, documentID, searchSpaceID, connectorID int64, vector []float32) error
	DeleteByDocumentID(ctx context.Context, documentID int64) error
}

// DocumentStore is the slice of store.Store the pipeline writes through.
type DocumentStore interface {
	LookupDocumentID(ctx context.Context, uniqueIdentifierHash string) (int64, bool, error)
	FindBySourceID(ctx context.Context, searchSpaceID int64, sourceID string) (int64, bool, error)
	UpsertDocuments(ctx context.Context, batch []models.DocumentWrite) ([]store.UpsertResult, error)
	AppendTaskLog(ctx context.Context, e models.TaskLogEntry) (int64, error)
	RecordIndexRun(ctx context.Context, connectorID int64, p store.RecordIndexRunParams) error
}

// RunPublisher is the slice of events.EventPublisher the pipeline emits
// progress through. Both failures are non-blocking and warning-logged,
// never fatal to the run.
type RunPublisher interface {
	PublishRunStatus(ctx context.Context, runID string, p events.RunStatusPayload) error
	PublishTaskLogAppended(ctx context.Context, runID string, p events.TaskLogAppendedPayload) error
}

// Pipeline is built once per run by the caller (pkg/scheduler), wired with
// the chunker/summarizer/embedder appropriate to the connector's owning
// search space (summarizer is TemplateSummarizer unless a long-context LLM
// is configured; embedder dials whichever provider the space's fast LLM
// config names).
type Pipeline struct {
	Store      DocumentStore
	Vectors    VectorWriter
	Events     RunPublisher
	Chunker    hashing.Chunker
	Tokenizer  hashing.Tokenizer
	Summarizer hashing.Summarizer
	Embedder   Embedder
}

// RunParams parameterizes one call to Run.
type RunParams struct {
	Connector              *models.Connector
	RunID                   string
	IncrementalSyncEnabled  bool
	UpdateLastIndexed       bool
	StartDate, EndDate      string
	ChunkTargetTokens       int
}

// RunSummary is the terminal report a completed (or aborted) run produces.
type RunSummary struct {
	Indexed          int
	Updated          int
	SkippedUnchanged int
	SkippedDuplicate int
	Errors           []string
	FailedItem       int
}

// Run executes the generic 5-step pipeline against adapter for the
// connector/params given. A nil error with a non-empty Errors list means
// the run succeeded overall with some items skipped for cause; a non-nil
// error means the whole run aborted (a run-fatal vs per-item distinction,
// classified via apperr.IsRunFatal).
func (p *Pipeline) Run(ctx context.Context, adapter connector.Adapter, params RunParams) (*RunSummary, error) {
	c := params.Connector
	summary := &RunSummary{}

	p.logStarted(ctx, c, params.RunID)
	p.publishStatus(ctx, params.RunID, c.ID, events.RunStatusRunning)

	hash, err := settingsHash(userVisibleConfig(c.Config))
	if err != nil {
		return nil, p.fail(ctx, c, params.RunID, apperr.New(apperr.KindItemMalformed, false, err))
	}

	useDelta := decideSyncMode(adapter, c, params.IncrementalSyncEnabled, hash)

	items, newCursor, err := p.listItems(ctx, adapter, c, params, useDelta)
	if err != nil {
		return nil, p.fail(ctx, c, params.RunID, err)
	}

	pending := make([]models.DocumentWrite, 0, batchFlushEvery)
	pendingEmbeds := make([][]string, 0, batchFlushEvery) // parallel: chunk texts per pending doc
	lastHeartbeat := time.Now()

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := p.flushBatch(ctx, c, pending, pendingEmbeds, summary); err != nil {
			return err
		}
		pending = pending[:0]
		pendingEmbeds = pendingEmbeds[:0]
		return nil
	}

	for _, item := range items {
		write, chunkTexts, skip, err := p.processItem(ctx, adapter, c, item, params, !useDelta)
		if err != nil {
			if apperr.IsRunFatal(err) {
				return nil, p.fail(ctx, c, params.RunID, err)
			}
			summary.FailedItem++
			if len(summary.Errors) < maxErrorsKept {
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", item.SourceID, err))
			}
			continue
		}
		if skip {
			summary.SkippedDuplicate++ // early source-id skip, step 3a
			continue
		}

		pending = append(pending, write)
		pendingEmbeds = append(pendingEmbeds, chunkTexts)
		if len(pending) >= batchFlushEvery {
			if err := flush(); err != nil {
				return nil, p.fail(ctx, c, params.RunID, err)
			}
		}

		if time.Since(lastHeartbeat) >= heartbeatInterval {
			p.heartbeat(ctx, c, params.RunID, summary)
			lastHeartbeat = time.Now()
		}
	}

	if err := flush(); err != nil {
		return nil, p.fail(ctx, c, params.RunID, err)
	}

	if err := p.Store.RecordIndexRun(ctx, c.ID, store.RecordIndexRunParams{
		SettingsHash:      hash,
		DeltaCursor:       newCursor,
		Health:            models.HealthStatusOK,
		UpdateLastIndexed: params.UpdateLastIndexed,
	}); err != nil {
		return nil, p.fail(ctx, c, params.RunID, err)
	}

	p.logTerminal(ctx, c, params.RunID, models.TaskLogStatusSuccess, summary)
	p.publishStatus(ctx, params.RunID, c.ID, events.RunStatusSucceeded)
	return summary, nil
}

// decideSyncMode applies delta mode only when every condition holds:
// adapter offers a delta cursor AND the connector has synced before AND
// the caller enabled incremental sync AND the settings haven't changed
// since the last run.
func decideSyncMode(adapter connector.Adapter, c *models.Connector, incrementalSyncEnabled bool, currentSettingsHash string) bool {
	if _, ok := adapter.(connector.DeltaLister); !ok {
		return false
	}
	if c.DeltaCursor == "" {
		return false
	}
	if c.LastIndexedAt == nil {
		return false
	}
	if !incrementalSyncEnabled {
		return false
	}
	return currentSettingsHash == c.LastIndexedSettingsHash
}

func (p *Pipeline) listItems(ctx context.Context, adapter connector.Adapter, c *models.Connector, params RunParams, useDelta bool) ([]connector.Item, string, error) {
	if useDelta {
		lister := adapter.(connector.DeltaLister)
		changes, newCursor, err := lister.ListDelta(ctx, c.DeltaCursor)
		if err != nil {
			return nil, "", apperr.New(apperr.KindTransient, true, err)
		}
		items := make([]connector.Item, 0, len(changes))
		for _, ch := range changes {
			if ch.Kind == connector.ChangeRemoved {
				continue // removal handling is a connector-specific concern
			}
			items = append(items, connector.Item{SourceID: ch.SourceID, Hint: ch.Payload})
		}
		return items, newCursor, nil
	}

	lister, ok := adapter.(connector.FullLister)
	if !ok {
		return nil, "", apperr.New(apperr.KindMissingCredentials, false,
			fmt.Errorf("indexer: connector type %s offers neither ListDelta nor ListFull", adapter.Type()))
	}
	window := connector.ResolveDateRange(params.StartDate, params.EndDate, c.LastIndexedAt, time.Now(), isCalendarLike(adapter.Type()))
	items, err := lister.ListFull(ctx, window)
	if err != nil {
		return nil, "", apperr.New(apperr.KindTransient, true, err)
	}
	return items, c.DeltaCursor, nil // full scan doesn't advance the delta cursor
}

func isCalendarLike(t models.ConnectorType) bool {
	return t == models.ConnectorTypeGoogleCalendar || t == models.ConnectorTypeLuma
}

// processItem runs step 3b-3d for one raw item: early dup skip, fetch,
// format, hash, and assemble the DocumentWrite the caller batches. The
// returned bool reports the early-skip path (step 3a); it is distinct from
// OutcomeSkippedDuplicateContent, which is decided later by pkg/store once
// content hashes are known.
//
// skipEarlyIfFound is true only for full-scan items, where the adapter
// gives no signal about whether a previously-seen source id changed —
// skipping before the (possibly expensive) fetch is safe because a real
// content change will be caught on the connector's next delta-capable run
// or next full rescan. Delta-mode items never set this: ListDelta already
// told us the item is new or changed, so skipping it here would silently
// drop a real update.
func (p *Pipeline) processItem(ctx context.Context, adapter connector.Adapter, c *models.Connector, item connector.Item, params RunParams, skipEarlyIfFound bool) (models.DocumentWrite, []string, bool, error) {
	identifierHash := hashing.IdentifierHash(string(c.Type), item.SourceID, c.SearchSpaceID)
	if skipEarlyIfFound {
		// Scoped to (search_space_id, source_id) only, NOT by connector type:
		// the same source id can be reached by a different connector in this
		// search space (e.g. a Drive file Slack already indexed as an
		// attachment), and that must skip here too, before FetchContent/ETL
		// run a second time over content already on file.
		if _, found, err := p.Store.FindBySourceID(ctx, c.SearchSpaceID, item.SourceID); err != nil {
			return models.DocumentWrite{}, nil, false, err
		} else if found {
			return models.DocumentWrite{}, nil, true, nil
		}
	}

	fetcher, ok := adapter.(connector.ContentFetcher)
	if !ok {
		return models.DocumentWrite{}, nil, false, apperr.New(apperr.KindEtlFailed, false,
			fmt.Errorf("indexer: connector type %s has no ContentFetcher", adapter.Type()))
	}
	raw, err := fetcher.FetchContent(ctx, item.SourceID, item.Hint)
	if err != nil {
		return models.DocumentWrite{}, nil, false, apperr.New(apperr.KindEtlFailed, true, err)
	}

	canonical := raw
	if formatter, ok := adapter.(connector.MarkdownFormatter); ok {
		canonical, err = formatter.FormatMarkdown(raw)
		if err != nil {
			return models.DocumentWrite{}, nil, false, apperr.New(apperr.KindItemMalformed, false, err)
		}
	}

	contentHash := hashing.ContentHash(c.SearchSpaceID, canonical)

	title := item.Title
	if title == "" {
		title = item.SourceID
	}

	content := canonical
	if p.Summarizer != nil {
		summary, err := p.Summarizer.Summarize(ctx, title, string(c.Type), canonical)
		if err != nil {
			return models.DocumentWrite{}, nil, false, apperr.New(apperr.KindLlmFailure, true, err)
		}
		content = summary
	}

	chunks, err := p.Chunker.Chunk(ctx, canonical, hashing.ChunkOptions{
		Language:     languageHint(item),
		TargetTokens: params.ChunkTargetTokens,
		Tokenizer:    p.Tokenizer,
	})
	if err != nil {
		return models.DocumentWrite{}, nil, false, apperr.New(apperr.KindItemMalformed, false, err)
	}

	chunkWrites := make([]models.ChunkWrite, len(chunks))
	for i, text := range chunks {
		chunkWrites[i] = models.ChunkWrite{Ordinal: i, Content: text}
	}

	write := models.DocumentWrite{
		SearchSpaceID:        c.SearchSpaceID,
		ConnectorID:          c.ID,
		ConnectorType:        c.Type,
		SourceID:             item.SourceID,
		Title:                title,
		Content:              content,
		ContentHash:          contentHash,
		UniqueIdentifierHash: identifierHash,
		Metadata:             item.Hint,
		Chunks:               chunkWrites,
	}
	return write, append(chunks, content), false, nil
}

func languageHint(item connector.Item) string {
	if item.Hint == nil {
		return ""
	}
	if lang, ok := item.Hint["language"].(string); ok {
		return lang
	}
	return ""
}

// flushBatch writes a pending set of documents through pkg/store, then
// embeds and writes vectors only for the slots that were actually
// inserted or updated (skipped-unchanged/duplicate slots own no new
// vectors). Per-document embedding failures are recorded as per-item
// errors rather than aborting the batch, since the document row itself
// already committed successfully.
func (p *Pipeline) flushBatch(ctx context.Context, c *models.Connector, batch []models.DocumentWrite, embedTexts [][]string, summary *RunSummary) error {
	results, err := p.Store.UpsertDocuments(ctx, batch)
	if err != nil {
		return apperr.New(apperr.KindDatabaseTransient, true, err)
	}

	for i, res := range results {
		switch res.Outcome {
		case models.OutcomeInserted:
			summary.Indexed++
		case models.OutcomeUpdated:
			summary.Updated++
		case models.OutcomeSkippedUnchanged:
			summary.SkippedUnchanged++
			continue
		case models.OutcomeSkippedDuplicateContent:
			summary.SkippedDuplicate++
			continue
		}

		if res.Outcome == models.OutcomeUpdated {
			if err := p.Vectors.DeleteByDocumentID(ctx, res.DocumentID); err != nil {
				summary.Errors = appendBounded(summary.Errors, fmt.Sprintf("doc %d: delete stale vectors: %v", res.DocumentID, err))
				continue
			}
		}

		texts := embedTexts[i]
		if len(texts) == 0 || p.Embedder == nil {
			continue
		}
		vectors, err := p.Embedder.Embed(ctx, texts)
		if err != nil {
			summary.Errors = appendBounded(summary.Errors, fmt.Sprintf("doc %d: embed: %v", res.DocumentID, err))
			continue
		}
		if err := p.writeVectors(ctx, c, res.DocumentID, batch[i], vectors); err != nil {
			summary.Errors = appendBounded(summary.Errors, fmt.Sprintf("doc %d: write vectors: %v", res.DocumentID, err))
		}
	}
	return nil
}

func (p *Pipeline) writeVectors(ctx context.Context, c *models.Connector, documentID int64, w models.DocumentWrite, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	// embedTexts appended the summary/content text after the chunk texts,
	// so the final vector is the summary embedding and the rest are chunks.
	summaryVector := vectors[len(vectors)-1]
	chunkVectors := vectors[:len(vectors)-1]

	points := make([]vectorstore.ChunkVector, 0, len(chunkVectors))
	for i, v := range chunkVectors {
		if i >= len(w.Chunks) {
			break
		}
		points = append(points, vectorstore.ChunkVector{
			DocumentID:    documentID,
			SearchSpaceID: c.SearchSpaceID,
			ConnectorID:   c.ID,
			Ordinal:       w.Chunks[i].Ordinal,
			Vector:        v,
		})
	}
	if err := p.Vectors.UpsertChunkVectors(ctx, points); err != nil {
		return err
	}
	return p.Vectors.UpsertDocumentSummaryVector(ctx, documentID, c.SearchSpaceID, c.ID, summaryVector)
}

func appendBounded(errs []string, msg string) []string {
	if len(errs) >= maxErrorsKept {
		return errs
	}
	return append(errs, msg)
}

func (p *Pipeline) logStarted(ctx context.Context, c *models.Connector, runID string) {
	_, _ = p.Store.AppendTaskLog(ctx, models.TaskLogEntry{
		RunID: runID, TaskName: "index_connector", Source: string(c.Type),
		SearchSpaceID: c.SearchSpaceID, ConnectorID: &c.ID, Status: models.TaskLogStatusStarted,
	})
}

func (p *Pipeline) heartbeat(ctx context.Context, c *models.Connector, runID string, summary *RunSummary) {
	msg := fmt.Sprintf("indexed=%d updated=%d skipped=%d duplicate=%d errors=%d",
		summary.Indexed, summary.Updated, summary.SkippedUnchanged, summary.SkippedDuplicate, summary.FailedItem)
	_, _ = p.Store.AppendTaskLog(ctx, models.TaskLogEntry{
		RunID: runID, TaskName: "index_connector", Source: string(c.Type),
		SearchSpaceID: c.SearchSpaceID, ConnectorID: &c.ID, Status: models.TaskLogStatusProgress, Message: msg,
	})
	p.publishLog(ctx, runID, "info", msg)
}

func (p *Pipeline) logTerminal(ctx context.Context, c *models.Connector, runID string, status models.TaskLogStatus, summary *RunSummary) {
	msg := fmt.Sprintf("indexed=%d updated=%d skipped=%d duplicate=%d errors=%d",
		summary.Indexed, summary.Updated, summary.SkippedUnchanged, summary.SkippedDuplicate, summary.FailedItem)
	_, _ = p.Store.AppendTaskLog(ctx, models.TaskLogEntry{
		RunID: runID, TaskName: "index_connector", Source: string(c.Type),
		SearchSpaceID: c.SearchSpaceID, ConnectorID: &c.ID, Status: status, Message: msg,
	})
	p.publishLog(ctx, runID, "info", msg)
}

// fail writes the terminal failure row and does NOT advance
// last_indexed_at — callers see a non-nil error and the connector's
// health is marked degraded.
func (p *Pipeline) fail(ctx context.Context, c *models.Connector, runID string, cause error) error {
	kind := apperr.KindTransient
	var ae *apperr.Error
	if errors.As(cause, &ae) {
		kind = ae.Kind
	}
	_, _ = p.Store.AppendTaskLog(ctx, models.TaskLogEntry{
		RunID: runID, TaskName: "index_connector", Source: string(c.Type),
		SearchSpaceID: c.SearchSpaceID, ConnectorID: &c.ID,
		Status: models.TaskLogStatusFailure, Message: cause.Error(),
		Metadata: map[string]any{"kind": kind.String()},
	})
	p.publishStatus(ctx, runID, c.ID, events.RunStatusFailed)
	health := models.HealthStatusDegraded
	if kind == apperr.KindAuthenticationExpired || kind == apperr.KindInvalidCredentials {
		health = models.HealthStatusAuthExpired
	}
	_ = p.Store.RecordIndexRun(ctx, c.ID, store.RecordIndexRunParams{Health: health})
	return cause
}

func (p *Pipeline) publishStatus(ctx context.Context, runID string, connectorID int64, status string) {
	_ = p.Events.PublishRunStatus(ctx, runID, events.RunStatusPayload{
		Type: events.EventTypeRunStatus, RunID: runID, ConnectorID: fmt.Sprint(connectorID), Status: status,
	})
}

func (p *Pipeline) publishLog(ctx context.Context, runID, level, message string) {
	_ = p.Events.PublishTaskLogAppended(ctx, runID, events.TaskLogAppendedPayload{
		Type: events.EventTypeTaskLogAppended, RunID: runID, Level: level, Message: message,
	})
}
