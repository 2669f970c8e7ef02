package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/quarryhq/quarry/pkg/apperr"
	"github.com/quarryhq/quarry/pkg/models"
)

// ElasticsearchAdapter demonstrates the search() contract in DOCUMENTS
// mode: every matching index document's text fields are concatenated and
// returned as one record per index with a uniform pseudo-score, rather
// than per-hit chunk-granularity records. It has no indexing capability of
// its own (ES is itself a source, not a sink here) so it implements only
// Validator and Searcher.
type ElasticsearchAdapter struct {
	client     *elasticsearch.Client
	indices    []string
	textFields []string
}

func NewElasticsearchAdapter(cfg map[string]any) (*ElasticsearchAdapter, error) {
	addrsRaw, _ := cfg["addresses"].([]any)
	addrs := make([]string, 0, len(addrsRaw))
	for _, a := range addrsRaw {
		if s, ok := a.(string); ok {
			addrs = append(addrs, s)
		}
	}
	if len(addrs) == 0 {
		return nil, apperr.New(apperr.KindMissingCredentials, false, fmt.Errorf("elasticsearch: at least one address required"))
	}
	apiKey, _ := cfg["api_key"].(string)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addrs, APIKey: apiKey})
	if err != nil {
		return nil, apperr.New(apperr.KindMissingCredentials, false, fmt.Errorf("elasticsearch: new client: %w", err))
	}

	indicesRaw, _ := cfg["indices"].([]any)
	indices := make([]string, 0, len(indicesRaw))
	for _, i := range indicesRaw {
		if s, ok := i.(string); ok {
			indices = append(indices, s)
		}
	}

	fieldsRaw, _ := cfg["text_fields"].([]any)
	fields := make([]string, 0, len(fieldsRaw))
	for _, f := range fieldsRaw {
		if s, ok := f.(string); ok {
			fields = append(fields, s)
		}
	}
	if len(fields) == 0 {
		fields = []string{"content", "text", "body"}
	}

	return &ElasticsearchAdapter{client: client, indices: indices, textFields: fields}, nil
}

func (a *ElasticsearchAdapter) Type() models.ConnectorType { return models.ConnectorTypeElasticsearch }

func (a *ElasticsearchAdapter) Validate(ctx context.Context, _ map[string]any) error {
	res, err := a.client.Ping(a.client.Ping.WithContext(ctx))
	if err != nil {
		return apperr.New(apperr.KindTransient, true, fmt.Errorf("elasticsearch: ping: %w", err))
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperr.New(apperr.KindInvalidCredentials, false, fmt.Errorf("elasticsearch: ping returned %s", res.Status()))
	}
	return nil
}

type esHit struct {
	Index  string                     `json:"_index"`
	Score  float32                    `json:"_score"`
	Source map[string]json.RawMessage `json:"_source"`
}

type esSearchResponse struct {
	Hits struct {
		Hits []esHit `json:"hits"`
	} `json:"hits"`
}

// Search runs a multi_match query across textFields and, in DOCUMENTS
// mode, concatenates every hit's matched fields per index into a single
// pseudo-document with uniform score 1.0; in CHUNKS mode it returns one
// record per hit at its real relevance score.
func (a *ElasticsearchAdapter) Search(ctx context.Context, query string, topK int, mode SearchMode) (SearchResult, error) {
	body := map[string]any{
		"size": topK,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": a.textFields,
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return SearchResult{}, apperr.New(apperr.KindTransient, false, err)
	}

	res, err := a.client.Search(
		a.client.Search.WithContext(ctx),
		a.client.Search.WithIndex(strings.Join(a.indices, ",")),
		a.client.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return SearchResult{}, apperr.New(apperr.KindTransient, true, fmt.Errorf("elasticsearch: search: %w", err))
	}
	defer res.Body.Close()
	if res.IsError() {
		return SearchResult{}, apperr.New(apperr.KindTransient, true, fmt.Errorf("elasticsearch: search returned %s", res.Status()))
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return SearchResult{}, apperr.New(apperr.KindItemMalformed, false, fmt.Errorf("elasticsearch: decode response: %w", err))
	}

	if mode == SearchModeDocuments {
		return a.concatenatedDocument(parsed.Hits.Hits), nil
	}

	records := make([]SearchRecord, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		records = append(records, SearchRecord{
			SourceID: hit.Index,
			Text:     a.extractText(hit.Source),
			Score:    hit.Score,
		})
	}
	return SearchResult{GroupID: "elasticsearch", Records: records}, nil
}

func (a *ElasticsearchAdapter) concatenatedDocument(hits []esHit) SearchResult {
	byIndex := make(map[string]*strings.Builder)
	order := make([]string, 0, len(hits))
	for _, hit := range hits {
		sb, ok := byIndex[hit.Index]
		if !ok {
			sb = &strings.Builder{}
			byIndex[hit.Index] = sb
			order = append(order, hit.Index)
		}
		sb.WriteString(a.extractText(hit.Source))
		sb.WriteString("\n\n")
	}
	records := make([]SearchRecord, 0, len(order))
	for _, idx := range order {
		records = append(records, SearchRecord{SourceID: idx, Title: idx, Text: byIndex[idx].String(), Score: 1.0})
	}
	return SearchResult{GroupID: "elasticsearch", Records: records}
}

func (a *ElasticsearchAdapter) extractText(source map[string]json.RawMessage) string {
	var sb strings.Builder
	for _, field := range a.textFields {
		raw, ok := source[field]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	}
	return strings.TrimSpace(sb.String())
}

func (a *ElasticsearchAdapter) FormatMarkdown(raw string) (string, error) {
	return raw, nil
}
