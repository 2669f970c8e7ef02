package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/quarryhq/quarry/pkg/apperr"
	"github.com/quarryhq/quarry/pkg/models"
)

const notionAPIVersion = "2022-06-28"

// NotionAdapter demonstrates the full-scan-only path: Notion's search API
// has no delta cursor, so this adapter does not implement DeltaLister — the
// pipeline probes for it, gets capability-absent, and falls back to
// ListFull every run. Page-id is the source identifier.
type NotionAdapter struct {
	httpClient *http.Client
	token      string
}

func NewNotionAdapter(cfg map[string]any) (*NotionAdapter, error) {
	token, _ := cfg["access_token"].(string)
	if token == "" {
		return nil, apperr.New(apperr.KindMissingCredentials, false, fmt.Errorf("notion: access_token required"))
	}
	return &NotionAdapter{httpClient: &http.Client{Timeout: 30 * time.Second}, token: token}, nil
}

func (a *NotionAdapter) Type() models.ConnectorType { return models.ConnectorTypeNotion }

func (a *NotionAdapter) Validate(ctx context.Context, _ map[string]any) error {
	var result struct {
		Object string `json:"object"`
	}
	if err := a.call(ctx, http.MethodGet, "https://api.notion.com/v1/users/me", nil, &result); err != nil {
		return err
	}
	if result.Object != "user" {
		return apperr.New(apperr.KindInvalidCredentials, false, fmt.Errorf("notion: unexpected /users/me response"))
	}
	return nil
}

type notionPage struct {
	ID             string `json:"id"`
	LastEditedTime string `json:"last_edited_time"`
	Properties     map[string]struct {
		Title []struct {
			PlainText string `json:"plain_text"`
		} `json:"title"`
	} `json:"properties"`
}

type notionSearchResponse struct {
	Results    []notionPage `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

// ListFull pages through /v1/search, which Notion scopes to pages shared
// with the integration — there is no window filter, so the DateRange is
// accepted for interface conformance and ignored.
func (a *NotionAdapter) ListFull(ctx context.Context, _ DateRange) ([]Item, error) {
	items := make([]Item, 0, 32)
	cursor := ""
	for {
		body := map[string]any{"page_size": 100}
		if cursor != "" {
			body["start_cursor"] = cursor
		}
		payload, _ := json.Marshal(body)

		var resp notionSearchResponse
		if err := a.call(ctx, http.MethodPost, "https://api.notion.com/v1/search", strings.NewReader(string(payload)), &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Results {
			items = append(items, Item{SourceID: p.ID, Title: notionPageTitle(p), Hint: map[string]any{"page_id": p.ID}})
		}
		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return items, nil
}

func notionPageTitle(p notionPage) string {
	for _, prop := range p.Properties {
		if len(prop.Title) > 0 {
			return prop.Title[0].PlainText
		}
	}
	return p.ID
}

type notionBlock struct {
	Type      string `json:"type"`
	Paragraph *struct {
		RichText []struct {
			PlainText string `json:"plain_text"`
		} `json:"rich_text"`
	} `json:"paragraph,omitempty"`
	Heading1 *struct {
		RichText []struct {
			PlainText string `json:"plain_text"`
		} `json:"rich_text"`
	} `json:"heading_1,omitempty"`
}

// FetchContent walks the page's block children and concatenates plain text
// — Notion's content lives in blocks, not the page object itself, so
// fetch_content always does a second round trip (the update-in-place vs
// skip-unchanged branch then hinges on this text's content_hash).
func (a *NotionAdapter) FetchContent(ctx context.Context, sourceID string, _ map[string]any) (string, error) {
	var resp struct {
		Results []notionBlock `json:"results"`
	}
	url := fmt.Sprintf("https://api.notion.com/v1/blocks/%s/children?page_size=100", sourceID)
	if err := a.call(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Results {
		switch b.Type {
		case "paragraph":
			if b.Paragraph != nil {
				for _, rt := range b.Paragraph.RichText {
					sb.WriteString(rt.PlainText)
				}
				sb.WriteString("\n\n")
			}
		case "heading_1":
			if b.Heading1 != nil {
				sb.WriteString("# ")
				for _, rt := range b.Heading1.RichText {
					sb.WriteString(rt.PlainText)
				}
				sb.WriteString("\n\n")
			}
		}
	}
	return sb.String(), nil
}

func (a *NotionAdapter) FormatMarkdown(raw string) (string, error) {
	return raw, nil
}

func (a *NotionAdapter) call(ctx context.Context, method, url string, body *strings.Reader, out any) error {
	return WithRetry(ctx, 5, nil, func(ctx context.Context) error {
		var reqBody *strings.Reader
		if body != nil {
			reqBody = body
		} else {
			reqBody = strings.NewReader("")
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return apperr.New(apperr.KindTransient, false, err)
		}
		req.Header.Set("Authorization", "Bearer "+a.token)
		req.Header.Set("Notion-Version", notionAPIVersion)
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return &RetryableError{Reason: RetryReasonTimeout, Err: err}
		}
		defer resp.Body.Close()

		if retryErr := ClassifyHTTPError(resp.StatusCode, resp.Header.Get("Retry-After"), fmt.Errorf("notion: http %d", resp.StatusCode)); retryErr != nil {
			return retryErr
		}
		if resp.StatusCode != http.StatusOK {
			return apperr.New(apperr.KindItemMalformed, false, fmt.Errorf("notion: http %d", resp.StatusCode))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}
