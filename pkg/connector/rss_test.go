package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testFeedXML = `<?xml version="1.0"?>
<rss version="2.0">
<channel>
  <title>Test Feed</title>
  <item>
    <title>First Post</title>
    <link>https://example.com/first</link>
    <guid>guid-1</guid>
    <description>First post body.</description>
    <pubDate>Fri, 31 Jul 2026 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Second Post</title>
    <link>https://example.com/second</link>
    <guid>guid-2</guid>
    <description>Second post body.</description>
    <pubDate>Fri, 31 Jul 2020 10:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

func TestRSSAdapterListFullFiltersByWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFeedXML))
	}))
	defer srv.Close()

	a, err := NewRSSAdapter(map[string]any{"feed_urls": []any{srv.URL}})
	if err != nil {
		t.Fatalf("expected adapter to build, got %v", err)
	}

	window := DateRange{Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)}
	items, err := a.ListFull(context.Background(), window)
	if err != nil {
		t.Fatalf("expected list to succeed, got %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected only the 2026 post within window, got %d items", len(items))
	}
	if items[0].Title != "First Post" {
		t.Fatalf("expected First Post to survive the window filter, got %q", items[0].Title)
	}
}

func TestRSSAdapterRequiresFeedURL(t *testing.T) {
	if _, err := NewRSSAdapter(map[string]any{}); err == nil {
		t.Fatal("expected error when no feed urls configured")
	}
}

func TestRSSAdapterFetchContentReturnsHintedContent(t *testing.T) {
	a, _ := NewRSSAdapter(map[string]any{"feed_urls": []any{"https://example.com/feed"}})
	content, err := a.FetchContent(context.Background(), "ignored", map[string]any{"content": "the body"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if content != "the body" {
		t.Fatalf("expected hinted content passthrough, got %q", content)
	}
}
