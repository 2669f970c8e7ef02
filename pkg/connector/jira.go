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

// JiraAdapter demonstrates PAT-based validate hitting a cheap endpoint
// (/myself) — no OAuth refresh flow, unlike Slack/Drive/Notion. issue-key
// is the source identifier.
type JiraAdapter struct {
	httpClient *http.Client
	baseURL    string
	email      string
	token      string
}

func NewJiraAdapter(cfg map[string]any) (*JiraAdapter, error) {
	baseURL, _ := cfg["base_url"].(string)
	email, _ := cfg["email"].(string)
	token, _ := cfg["api_token"].(string)
	if baseURL == "" || token == "" {
		return nil, apperr.New(apperr.KindMissingCredentials, false, fmt.Errorf("jira: base_url and api_token required"))
	}
	return &JiraAdapter{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		email:      email,
		token:      token,
	}, nil
}

func (a *JiraAdapter) Type() models.ConnectorType { return models.ConnectorTypeJira }

func (a *JiraAdapter) Validate(ctx context.Context, _ map[string]any) error {
	var result struct {
		AccountID string `json:"accountId"`
	}
	if err := a.call(ctx, http.MethodGet, a.baseURL+"/rest/api/3/myself", &result); err != nil {
		return err
	}
	if result.AccountID == "" {
		return apperr.New(apperr.KindInvalidCredentials, false, fmt.Errorf("jira: /myself returned no account"))
	}
	return nil
}

type jiraIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary  string `json:"summary"`
		Updated  string `json:"updated"`
		IssueLog string `json:"description"`
	} `json:"fields"`
}

type jiraSearchResponse struct {
	Issues     []jiraIssue `json:"issues"`
	Total      int         `json:"total"`
	StartAt    int         `json:"startAt"`
	MaxResults int         `json:"maxResults"`
}

// ListFull pages through /rest/api/3/search with a JQL filter clamped to
// the window's update timestamps.
func (a *JiraAdapter) ListFull(ctx context.Context, window DateRange) ([]Item, error) {
	items := make([]Item, 0, 64)
	startAt := 0
	for {
		jql := fmt.Sprintf("updated >= \"%s\" AND updated <= \"%s\" ORDER BY updated ASC",
			window.Start.Format("2006-01-02 15:04"), window.End.Format("2006-01-02 15:04"))
		url := fmt.Sprintf("%s/rest/api/3/search?jql=%s&startAt=%d&maxResults=100", a.baseURL, jql, startAt)

		var resp jiraSearchResponse
		if err := a.call(ctx, http.MethodGet, url, &resp); err != nil {
			return nil, err
		}
		for _, issue := range resp.Issues {
			items = append(items, Item{SourceID: issue.Key, Title: issue.Fields.Summary})
		}
		startAt += len(resp.Issues)
		if startAt >= resp.Total || len(resp.Issues) == 0 {
			break
		}
	}
	return items, nil
}

// FetchContent retrieves the single issue and renders a plain-text
// concatenation of summary and description; FormatMarkdown does the
// structural rendering.
func (a *JiraAdapter) FetchContent(ctx context.Context, sourceID string, _ map[string]any) (string, error) {
	var issue jiraIssue
	url := fmt.Sprintf("%s/rest/api/3/issue/%s", a.baseURL, sourceID)
	if err := a.call(ctx, http.MethodGet, url, &issue); err != nil {
		return "", err
	}
	return issue.Fields.Summary + "\n\n" + issue.Fields.IssueLog, nil
}

func (a *JiraAdapter) FormatMarkdown(raw string) (string, error) {
	lines := strings.SplitN(raw, "\n\n", 2)
	if len(lines) == 2 {
		return "# " + lines[0] + "\n\n" + lines[1], nil
	}
	return raw, nil
}

func (a *JiraAdapter) call(ctx context.Context, method, url string, out any) error {
	return WithRetry(ctx, 5, nil, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return apperr.New(apperr.KindTransient, false, err)
		}
		req.SetBasicAuth(a.email, a.token)
		req.Header.Set("Accept", "application/json")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return &RetryableError{Reason: RetryReasonTimeout, Err: err}
		}
		defer resp.Body.Close()

		if retryErr := ClassifyHTTPError(resp.StatusCode, resp.Header.Get("Retry-After"), fmt.Errorf("jira: http %d", resp.StatusCode)); retryErr != nil {
			return retryErr
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return apperr.New(apperr.KindInvalidCredentials, false, fmt.Errorf("jira: http %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return apperr.New(apperr.KindItemMalformed, false, fmt.Errorf("jira: http %d", resp.StatusCode))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}
