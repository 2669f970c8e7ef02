package connector

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/quarryhq/quarry/pkg/apperr"
	"github.com/quarryhq/quarry/pkg/models"
)

// WebcrawlerAdapter demonstrates the canonical-text / metadata-stripped-hash
// invariant explicitly: the text handed to the hasher has <meta>, <script>,
// <style> and <time> nodes stripped first, so a page whose only change is a
// "last updated" timestamp still hashes identically. URL is the source
// identifier.
type WebcrawlerAdapter struct {
	httpClient *http.Client
	seedURLs   []string
}

func NewWebcrawlerAdapter(cfg map[string]any) (*WebcrawlerAdapter, error) {
	raw, _ := cfg["urls"].([]any)
	urls := make([]string, 0, len(raw))
	for _, u := range raw {
		if s, ok := u.(string); ok {
			urls = append(urls, s)
		}
	}
	if len(urls) == 0 {
		return nil, apperr.New(apperr.KindMissingCredentials, false, fmt.Errorf("webcrawler: at least one seed url required"))
	}
	return &WebcrawlerAdapter{httpClient: &http.Client{Timeout: 30 * time.Second}, seedURLs: urls}, nil
}

func (a *WebcrawlerAdapter) Type() models.ConnectorType { return models.ConnectorTypeWebcrawler }

// Validate performs a HEAD-equivalent GET against the first seed URL; a
// crawler has no credential to refresh, only reachability to confirm.
func (a *WebcrawlerAdapter) Validate(ctx context.Context, _ map[string]any) error {
	return WithRetry(ctx, 3, nil, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.seedURLs[0], nil)
		if err != nil {
			return apperr.New(apperr.KindTransient, false, err)
		}
		resp, err := a.httpClient.Do(req)
		if err != nil {
			return &RetryableError{Reason: RetryReasonTimeout, Err: err}
		}
		defer resp.Body.Close()
		if retryErr := ClassifyHTTPError(resp.StatusCode, resp.Header.Get("Retry-After"), fmt.Errorf("webcrawler: http %d", resp.StatusCode)); retryErr != nil {
			return retryErr
		}
		if resp.StatusCode != http.StatusOK {
			return apperr.New(apperr.KindInvalidCredentials, false, fmt.Errorf("webcrawler: seed url unreachable, http %d", resp.StatusCode))
		}
		return nil
	})
}

// ListFull treats every configured seed URL as one item; the window is
// irrelevant to a static crawl target and is accepted only for interface
// conformance.
func (a *WebcrawlerAdapter) ListFull(_ context.Context, _ DateRange) ([]Item, error) {
	items := make([]Item, 0, len(a.seedURLs))
	for _, u := range a.seedURLs {
		items = append(items, Item{SourceID: u, Title: u, Hint: map[string]any{"url": u}})
	}
	return items, nil
}

// FetchContent downloads the page and strips metadata/script/style/time
// nodes before returning the remaining body text — this stripped text, not
// the raw HTML, is what content_hash is computed over downstream.
func (a *WebcrawlerAdapter) FetchContent(ctx context.Context, sourceID string, _ map[string]any) (string, error) {
	var body string
	err := WithRetry(ctx, 5, nil, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceID, nil)
		if err != nil {
			return apperr.New(apperr.KindTransient, false, err)
		}
		resp, err := a.httpClient.Do(req)
		if err != nil {
			return &RetryableError{Reason: RetryReasonTimeout, Err: err}
		}
		defer resp.Body.Close()
		if retryErr := ClassifyHTTPError(resp.StatusCode, resp.Header.Get("Retry-After"), fmt.Errorf("webcrawler: http %d", resp.StatusCode)); retryErr != nil {
			return retryErr
		}
		if resp.StatusCode != http.StatusOK {
			return apperr.New(apperr.KindItemMalformed, false, fmt.Errorf("webcrawler: http %d for %s", resp.StatusCode, sourceID))
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return apperr.New(apperr.KindEtlFailed, false, fmt.Errorf("webcrawler: parse html: %w", err))
		}
		doc.Find("meta, script, style, time, noscript").Remove()
		html, err := doc.Find("body").Html()
		if err != nil {
			return apperr.New(apperr.KindEtlFailed, false, fmt.Errorf("webcrawler: serialize stripped html: %w", err))
		}
		body = html
		return nil
	})
	return body, err
}

// FormatMarkdown renders the stripped HTML to markdown via
// html-to-markdown for storage as the Document's canonical content.
func (a *WebcrawlerAdapter) FormatMarkdown(raw string) (string, error) {
	md, err := htmltomarkdown.ConvertString(raw)
	if err != nil {
		return "", apperr.New(apperr.KindEtlFailed, false, fmt.Errorf("webcrawler: html to markdown: %w", err))
	}
	return strings.TrimSpace(md), nil
}
