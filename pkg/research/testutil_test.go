package research

import (
	"context"
	"sync"

	"github.com/quarryhq/quarry/pkg/connector"
	"github.com/quarryhq/quarry/pkg/llmclient"
)

// fakeLLMClient returns one scripted response text per Generate call, in
// order. Responses run out returns an empty TextChunk rather than erroring,
// since most tests only care about a handful of calls.
type fakeLLMClient struct {
	mu        sync.Mutex
	responses []string
	calls     int
	err       error
}

func (f *fakeLLMClient) Generate(ctx context.Context, input llmclient.GenerateInput) (<-chan llmclient.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	var resp string
	if f.calls < len(f.responses) {
		resp = f.responses[f.calls]
	}
	f.calls++
	f.mu.Unlock()

	ch := make(chan llmclient.Chunk, 1)
	ch <- &llmclient.TextChunk{Content: resp}
	close(ch)
	return ch, nil
}

func (f *fakeLLMClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (f *fakeLLMClient) Close() error { return nil }

// fakeSearcher answers connector.Searcher.Search from a fixed map keyed by
// query string.
type fakeSearcher struct {
	results map[string]connector.SearchResult
}

func (f *fakeSearcher) Search(ctx context.Context, query string, topK int, mode connector.SearchMode) (connector.SearchResult, error) {
	return f.results[query], nil
}

// eventSink collects emitted events behind a mutex, since Fanout's progress
// callback fires from multiple goroutines.
type eventSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *eventSink) collect(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *eventSink) of(t EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.eventType() == t {
			out = append(out, ev)
		}
	}
	return out
}
