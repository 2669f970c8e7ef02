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

// textMIMEPrefixes are decoded directly; everything else routes through an
// ETL client for binary-MIME extraction.
var textMIMEPrefixes = []string{"text/", "application/json", "application/xml"}

func isTextMIME(mime string) bool {
	for _, prefix := range textMIMEPrefixes {
		if strings.HasPrefix(mime, prefix) {
			return true
		}
	}
	return false
}

// ETLClient extracts text from binary documents (PDF, DOCX, images via
// OCR). GoogleDriveAdapter accepts one so tests can substitute a fake
// without standing up Unstructured/LlamaParse/Docling.
type ETLClient interface {
	ExtractText(ctx context.Context, contentURL, mimeType string) (string, error)
}

// GoogleDriveAdapter demonstrates the early-skip dedup-by-source-id path
// (the pipeline checks file_id against every connector in the search
// space before calling FetchContent at all) and binary-MIME routing
// through an ETL client. file_id is the source identifier.
type GoogleDriveAdapter struct {
	httpClient  *http.Client
	accessToken string
	folderIDs   []string
	etl         ETLClient
}

func NewGoogleDriveAdapter(cfg map[string]any) (*GoogleDriveAdapter, error) {
	token, _ := cfg["access_token"].(string)
	if token == "" {
		return nil, apperr.New(apperr.KindMissingCredentials, false, fmt.Errorf("google_drive: access_token required"))
	}
	raw, _ := cfg["folder_ids"].([]any)
	folders := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			folders = append(folders, s)
		}
	}
	etl, _ := cfg["_etl_client"].(ETLClient)
	return &GoogleDriveAdapter{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		accessToken: token,
		folderIDs:   folders,
		etl:         etl,
	}, nil
}

func (a *GoogleDriveAdapter) Type() models.ConnectorType { return models.ConnectorTypeGoogleDrive }

func (a *GoogleDriveAdapter) Validate(ctx context.Context, _ map[string]any) error {
	var result struct {
		User struct {
			EmailAddress string `json:"emailAddress"`
		} `json:"user"`
	}
	err := a.call(ctx, "https://www.googleapis.com/drive/v3/about?fields=user", &result)
	if err != nil {
		return err
	}
	if result.User.EmailAddress == "" {
		return apperr.New(apperr.KindAuthenticationExpired, false, fmt.Errorf("google_drive: token refresh required"))
	}
	return nil
}

type driveFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime"`
	WebViewLink  string `json:"webViewLink"`
}

type driveListResponse struct {
	Files         []driveFile `json:"files"`
	NextPageToken string      `json:"nextPageToken"`
}

// ListFull lists files under every configured folder, filtered to the
// modifiedTime window.
func (a *GoogleDriveAdapter) ListFull(ctx context.Context, window DateRange) ([]Item, error) {
	items := make([]Item, 0, 64)
	for _, folderID := range a.folderIDs {
		pageToken := ""
		for {
			q := fmt.Sprintf("'%s' in parents and modifiedTime >= '%s' and modifiedTime <= '%s'",
				folderID, window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
			url := fmt.Sprintf(
				"https://www.googleapis.com/drive/v3/files?q=%s&fields=nextPageToken,files(id,name,mimeType,modifiedTime,webViewLink)",
				q,
			)
			if pageToken != "" {
				url += "&pageToken=" + pageToken
			}
			var resp driveListResponse
			if err := a.call(ctx, url, &resp); err != nil {
				return nil, err
			}
			for _, f := range resp.Files {
				items = append(items, Item{
					SourceID: f.ID,
					Title:    f.Name,
					Hint:     map[string]any{"mime_type": f.MimeType, "web_view_link": f.WebViewLink},
				})
			}
			if resp.NextPageToken == "" {
				break
			}
			pageToken = resp.NextPageToken
		}
	}
	return items, nil
}

// FetchContent routes binary MIME types through the configured ETL client
// and decodes text MIME types directly via the export/download endpoint.
func (a *GoogleDriveAdapter) FetchContent(ctx context.Context, sourceID string, hint map[string]any) (string, error) {
	mimeType, _ := hint["mime_type"].(string)
	contentURL := fmt.Sprintf("https://www.googleapis.com/drive/v3/files/%s?alt=media", sourceID)

	if !isTextMIME(mimeType) {
		if a.etl == nil {
			return "", apperr.New(apperr.KindEtlFailed, false, fmt.Errorf("google_drive: no ETL client configured for mime %q", mimeType))
		}
		text, err := a.etl.ExtractText(ctx, contentURL, mimeType)
		if err != nil {
			return "", apperr.New(apperr.KindEtlFailed, false, fmt.Errorf("google_drive: etl extract: %w", err))
		}
		return text, nil
	}

	var body string
	err := WithRetry(ctx, 5, nil, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, contentURL, nil)
		if err != nil {
			return apperr.New(apperr.KindTransient, false, err)
		}
		req.Header.Set("Authorization", "Bearer "+a.accessToken)
		resp, err := a.httpClient.Do(req)
		if err != nil {
			return &RetryableError{Reason: RetryReasonTimeout, Err: err}
		}
		defer resp.Body.Close()
		if retryErr := ClassifyHTTPError(resp.StatusCode, resp.Header.Get("Retry-After"), fmt.Errorf("google_drive: http %d", resp.StatusCode)); retryErr != nil {
			return retryErr
		}
		if resp.StatusCode != http.StatusOK {
			return apperr.New(apperr.KindItemMalformed, false, fmt.Errorf("google_drive: http %d", resp.StatusCode))
		}
		var sb strings.Builder
		buf := make([]byte, 32*1024)
		for {
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				sb.Write(buf[:n])
			}
			if readErr != nil {
				break
			}
		}
		body = sb.String()
		return nil
	})
	return body, err
}

func (a *GoogleDriveAdapter) FormatMarkdown(raw string) (string, error) {
	return raw, nil
}

func (a *GoogleDriveAdapter) call(ctx context.Context, url string, out any) error {
	return WithRetry(ctx, 5, nil, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return apperr.New(apperr.KindTransient, false, err)
		}
		req.Header.Set("Authorization", "Bearer "+a.accessToken)
		resp, err := a.httpClient.Do(req)
		if err != nil {
			return &RetryableError{Reason: RetryReasonTimeout, Err: err}
		}
		defer resp.Body.Close()
		if retryErr := ClassifyHTTPError(resp.StatusCode, resp.Header.Get("Retry-After"), fmt.Errorf("google_drive: http %d", resp.StatusCode)); retryErr != nil {
			return retryErr
		}
		if resp.StatusCode != http.StatusOK {
			return apperr.New(apperr.KindItemMalformed, false, fmt.Errorf("google_drive: http %d", resp.StatusCode))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}
