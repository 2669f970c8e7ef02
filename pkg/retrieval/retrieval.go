// Package retrieval fans a set of research questions out across the
// connectors selected for one search space, merges and deduplicates what
// comes back, reranks the survivors, and packs as many as fit a model's
// context window.
package retrieval

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/quarryhq/quarry/pkg/connector"
	"github.com/quarryhq/quarry/pkg/hashing"
	"github.com/quarryhq/quarry/pkg/models"
)

// Target is one connector eligible for this fan-out, tagged with the
// identifiers the dedup/display layer needs.
type Target struct {
	ConnectorID   int64
	ConnectorName string
	Type          models.ConnectorType
	Searcher      connector.Searcher
}

// GroupKey is the (type, group_id) pair source-group dedup keys on.
type GroupKey struct {
	Type    models.ConnectorType
	GroupID string
}

// candidateGroup is one (question, connector) call's result, tagged for
// dedup and for building the client-facing source list.
type candidateGroup struct {
	Key           GroupKey
	ConnectorID   int64
	ConnectorName string
	Records       []connector.SearchRecord
}

// ProgressFunc reports one fan-out step resolving, e.g. "Searching
// Slack... found 6". Called from multiple goroutines; implementations
// must be safe for concurrent use (events.Publisher methods already are).
type ProgressFunc func(message string)

// FanoutResult is the merged, deduplicated set of chunks a Fanout call
// produced, plus the surviving source groups for the client's citation
// list.
type FanoutResult struct {
	Chunks []Chunk
	Groups []Group
}

// Chunk is one deduplicated search record, carrying enough provenance to
// cite it and rerank it.
type Chunk struct {
	ConnectorID   int64
	ConnectorType models.ConnectorType
	GroupID       string
	SourceID      string
	Title         string
	Text          string
	Score         float32
	Metadata      map[string]any
}

// Group is one surviving source group, ready for the client's citation
// sidebar.
type Group struct {
	Key           GroupKey
	ConnectorID   int64
	ConnectorName string
	SourceIDs     []string
}

// Fanout runs every (question, target) pair concurrently (bounded by
// maxConcurrency), merges the results through the source-group and chunk
// dedup passes, and returns the deduplicated chunks ungrouped alongside
// their surviving groups. userSelected groups are merged in
// ahead of the fan-out results so they are never dropped by the
// keep-larger-group rule unless a fan-out result actually outscores them
// on chunk count for the same key.
func Fanout(ctx context.Context, questions []string, targets []Target, topK int, mode connector.SearchMode, maxConcurrency int, userSelected []Group, onProgress ProgressFunc) (*FanoutResult, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = len(questions) * len(targets)
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	var (
		mu     sync.Mutex
		groups []candidateGroup
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)

	for _, q := range questions {
		for _, t := range targets {
			q, t := q, t
			g.Go(func() error {
				result, err := t.Searcher.Search(gctx, q, topK, mode)
				if err != nil {
					return fmt.Errorf("retrieval: search %s for %q: %w", t.ConnectorName, q, err)
				}
				if onProgress != nil {
					onProgress(fmt.Sprintf("Searching %s... found %d", t.ConnectorName, len(result.Records)))
				}
				if len(result.Records) == 0 {
					return nil
				}
				mu.Lock()
				groups = append(groups, candidateGroup{
					Key:           GroupKey{Type: t.Type, GroupID: result.GroupID},
					ConnectorID:   t.ConnectorID,
					ConnectorName: t.ConnectorName,
					Records:       result.Records,
				})
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		if len(groups) == 0 {
			return nil, err
		}
		// Partial failure: some connectors answered, proceed with those.
	}

	kept := dedupSourceGroups(userGroupsToCandidate(userSelected), groups)
	chunks := dedupChunks(kept)

	return &FanoutResult{
		Chunks: chunks,
		Groups: groupsFromKept(kept),
	}, nil
}

func userGroupsToCandidate(groups []Group) []candidateGroup {
	out := make([]candidateGroup, 0, len(groups))
	for _, gr := range groups {
		records := make([]connector.SearchRecord, len(gr.SourceIDs))
		for i, id := range gr.SourceIDs {
			records[i] = connector.SearchRecord{SourceID: id}
		}
		out = append(out, candidateGroup{Key: gr.Key, ConnectorID: gr.ConnectorID, ConnectorName: gr.ConnectorName, Records: records})
	}
	return out
}

func groupsFromKept(kept []candidateGroup) []Group {
	out := make([]Group, 0, len(kept))
	for _, c := range kept {
		ids := make([]string, len(c.Records))
		for i, r := range c.Records {
			ids[i] = r.SourceID
		}
		out = append(out, Group{Key: c.Key, ConnectorID: c.ConnectorID, ConnectorName: c.ConnectorName, SourceIDs: ids})
	}
	return out
}

// Pack bridges a reranked Chunk list into pkg/hashing.Packer, assigning
// each surviving chunk a synthetic packer-local id (its index) since
// search results aren't necessarily backed by a stored models.Document.
func Pack(packer *hashing.Packer, base string, chunks []Chunk, contextWindow, reservedOutput int) []Chunk {
	docs := make([]hashing.PackableDocument, len(chunks))
	for i, c := range chunks {
		docs[i] = hashing.PackableDocument{ID: int64(i), Text: c.Text}
	}
	packed := packer.Pack(base, docs, contextWindow, reservedOutput)
	out := make([]Chunk, len(packed))
	for i, d := range packed {
		out[i] = chunks[d.ID]
	}
	return out
}
