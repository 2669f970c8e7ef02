package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/connector"
	"github.com/quarryhq/quarry/pkg/models"
)

type fakeSearcher struct {
	mu      sync.Mutex
	calls   int
	results map[string]connector.SearchResult
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, topK int, mode connector.SearchMode) (connector.SearchResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return connector.SearchResult{}, f.err
	}
	return f.results[query], nil
}

func TestFanout_MergesAcrossQuestionsAndConnectors(t *testing.T) {
	slack := &fakeSearcher{results: map[string]connector.SearchResult{
		"q1": {GroupID: "slack-general", Records: []connector.SearchRecord{
			{SourceID: "m1", Text: "alpha", Score: 0.9},
		}},
		"q2": {GroupID: "slack-general", Records: []connector.SearchRecord{
			{SourceID: "m1", Text: "alpha", Score: 0.9},
			{SourceID: "m2", Text: "beta", Score: 0.5},
		}},
	}}
	notion := &fakeSearcher{results: map[string]connector.SearchResult{
		"q1": {GroupID: "notion-docs", Records: []connector.SearchRecord{
			{SourceID: "p1", Text: "gamma", Score: 0.7},
		}},
		"q2": {GroupID: "notion-docs", Records: []connector.SearchRecord{
			{SourceID: "p1", Text: "gamma", Score: 0.7},
		}},
	}}

	targets := []Target{
		{ConnectorID: 1, ConnectorName: "slack", Type: models.ConnectorTypeSlack, Searcher: slack},
		{ConnectorID: 2, ConnectorName: "notion", Type: models.ConnectorTypeNotion, Searcher: notion},
	}

	var progress []string
	var mu sync.Mutex
	res, err := Fanout(context.Background(), []string{"q1", "q2"}, targets, 10, connector.SearchModeChunks, 4, nil, func(msg string) {
		mu.Lock()
		progress = append(progress, msg)
		mu.Unlock()
	})
	require.NoError(t, err)

	// slack's q2 call (2 records) should win over its q1 call (1 record).
	require.Len(t, res.Groups, 2)
	var slackGroup *Group
	for i := range res.Groups {
		if res.Groups[i].Key.Type == models.ConnectorTypeSlack {
			slackGroup = &res.Groups[i]
		}
	}
	require.NotNil(t, slackGroup)
	assert.Len(t, slackGroup.SourceIDs, 2)

	// chunk dedup collapses "alpha"/"gamma" seen twice across questions.
	assert.Len(t, res.Chunks, 3)
	assert.Len(t, progress, 4) // 2 questions x 2 connectors
}

func TestFanout_PartialFailureReturnsWhatSucceeded(t *testing.T) {
	ok := &fakeSearcher{results: map[string]connector.SearchResult{
		"q1": {GroupID: "g1", Records: []connector.SearchRecord{{SourceID: "s1", Text: "x"}}},
	}}
	broken := &fakeSearcher{err: errors.New("connector unreachable")}

	targets := []Target{
		{ConnectorID: 1, ConnectorName: "ok", Type: models.ConnectorTypeSlack, Searcher: ok},
		{ConnectorID: 2, ConnectorName: "broken", Type: models.ConnectorTypeNotion, Searcher: broken},
	}

	res, err := Fanout(context.Background(), []string{"q1"}, targets, 10, connector.SearchModeChunks, 2, nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
}

func TestFanout_AllFailuresReturnsError(t *testing.T) {
	broken := &fakeSearcher{err: errors.New("down")}
	targets := []Target{{ConnectorID: 1, ConnectorName: "broken", Type: models.ConnectorTypeSlack, Searcher: broken}}

	_, err := Fanout(context.Background(), []string{"q1"}, targets, 10, connector.SearchModeChunks, 1, nil, nil)
	assert.Error(t, err)
}

func TestFanout_UserSelectedGroupSurvivesUnlessOutscored(t *testing.T) {
	userSelected := []Group{
		{Key: GroupKey{Type: models.ConnectorTypeNotion, GroupID: "notion-docs"}, ConnectorID: 2, ConnectorName: "notion", SourceIDs: []string{"p1"}},
	}
	notion := &fakeSearcher{results: map[string]connector.SearchResult{
		"q1": {GroupID: "notion-docs", Records: []connector.SearchRecord{{SourceID: "p1", Text: "gamma"}}},
	}}
	targets := []Target{{ConnectorID: 2, ConnectorName: "notion", Type: models.ConnectorTypeNotion, Searcher: notion}}

	res, err := Fanout(context.Background(), []string{"q1"}, targets, 10, connector.SearchModeChunks, 1, userSelected, nil)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "notion-docs", res.Groups[0].Key.GroupID)
}
