package retrieval

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/quarryhq/quarry/pkg/connector"
)

// dedupSourceGroups merges seed ahead of fanned groups and collapses
// duplicate (type, group_id) keys, preserving first-occurrence order the
// way a seen-set pass would, except a later duplicate with MORE records
// than the incumbent replaces it in place rather than being dropped.
func dedupSourceGroups(seed, groups []candidateGroup) []candidateGroup {
	order := make([]GroupKey, 0, len(seed)+len(groups))
	byKey := make(map[GroupKey]candidateGroup, len(seed)+len(groups))

	add := func(c candidateGroup) {
		existing, ok := byKey[c.Key]
		if !ok {
			order = append(order, c.Key)
			byKey[c.Key] = c
			return
		}
		if len(c.Records) > len(existing.Records) {
			byKey[c.Key] = c
		}
	}

	for _, c := range seed {
		add(c)
	}
	for _, c := range groups {
		add(c)
	}

	out := make([]candidateGroup, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k])
	}
	return out
}

// dedupChunks flattens the surviving groups' records into Chunks,
// collapsing duplicates keyed by metadata["chunk_id"] when present, a
// content-hash fallback otherwise. First occurrence wins, matching
// Tangerg/lynx/ai/rag's deduplication refiner's preserve-first-seen rule.
func dedupChunks(kept []candidateGroup) []Chunk {
	seen := make(map[string]struct{})
	out := make([]Chunk, 0, len(kept))

	for _, g := range kept {
		for _, r := range g.Records {
			key := chunkDedupKey(r)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, Chunk{
				ConnectorID:   g.ConnectorID,
				ConnectorType: g.Key.Type,
				GroupID:       g.Key.GroupID,
				SourceID:      r.SourceID,
				Title:         r.Title,
				Text:          r.Text,
				Score:         r.Score,
				Metadata:      r.Metadata,
			})
		}
	}
	return out
}

func chunkDedupKey(r connector.SearchRecord) string {
	if id, ok := r.Metadata["chunk_id"]; ok {
		if s, ok := id.(string); ok && s != "" {
			return "id:" + s
		}
	}
	sum := sha256.Sum256([]byte(r.Text))
	return "hash:" + hex.EncodeToString(sum[:])
}
