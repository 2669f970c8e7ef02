package models

import "time"

// ConnectorType enumerates the supported source types. A handful
// (Slack, Notion, Webcrawler, GoogleDrive, Jira, RSS, Elasticsearch) have a
// fully-working adapter under pkg/connector; the rest register against the
// same pkg/connector.Adapter contract via a documented stub — see
// pkg/connector/stubs.go and DESIGN.md.
type ConnectorType string

const (
	ConnectorTypeSlack          ConnectorType = "slack"
	ConnectorTypeNotion         ConnectorType = "notion"
	ConnectorTypeGitHub         ConnectorType = "github"
	ConnectorTypeLinear         ConnectorType = "linear"
	ConnectorTypeJira           ConnectorType = "jira"
	ConnectorTypeConfluence     ConnectorType = "confluence"
	ConnectorTypeBookStack      ConnectorType = "bookstack"
	ConnectorTypeClickUp        ConnectorType = "clickup"
	ConnectorTypeAirtable       ConnectorType = "airtable"
	ConnectorTypeLuma           ConnectorType = "luma"
	ConnectorTypeGoogleCalendar ConnectorType = "google_calendar"
	ConnectorTypeGmail          ConnectorType = "gmail"
	ConnectorTypeGoogleDrive    ConnectorType = "google_drive"
	ConnectorTypeDiscord        ConnectorType = "discord"
	ConnectorTypeTeams          ConnectorType = "teams"
	ConnectorTypeElasticsearch  ConnectorType = "elasticsearch"
	ConnectorTypeWebcrawler     ConnectorType = "webcrawler"
	ConnectorTypeObsidian       ConnectorType = "obsidian"
	ConnectorTypeJellyfin       ConnectorType = "jellyfin"
	ConnectorTypeHomeAssistant  ConnectorType = "home_assistant"
	ConnectorTypeRSS            ConnectorType = "rss"
)

// IsOAuth reports whether this connector type authenticates via OAuth.
// Non-OAuth connector types are singleton per search space; OAuth types
// may have more than one instance.
func (t ConnectorType) IsOAuth() bool {
	switch t {
	case ConnectorTypeGoogleCalendar, ConnectorTypeGmail, ConnectorTypeGoogleDrive,
		ConnectorTypeNotion, ConnectorTypeLinear, ConnectorTypeDiscord, ConnectorTypeTeams:
		return true
	default:
		return false
	}
}

// HealthStatus reflects a connector's last-known reachability, surfaced by
// validate() and by the scheduler's claim path.
type HealthStatus string

const (
	HealthStatusOK          HealthStatus = "ok"
	HealthStatusDegraded    HealthStatus = "degraded"
	HealthStatusAuthExpired HealthStatus = "auth_expired"
)

// Connector is a per-source configured instance owned by exactly one
// SearchSpace.
type Connector struct {
	ID                      int64          `json:"id"`
	SearchSpaceID           int64          `json:"search_space_id"`
	Type                    ConnectorType  `json:"type"`
	Name                    string         `json:"name"`
	Config                  map[string]any `json:"config"` // credentials, scopes, folders, options
	IsIndexable             bool           `json:"is_indexable"`
	PeriodicIndexingEnabled bool           `json:"periodic_indexing_enabled"`
	IndexingFrequencyMins   int            `json:"indexing_frequency_minutes"`
	LastIndexedAt           *time.Time     `json:"last_indexed_at,omitempty"`
	NextScheduledAt         *time.Time     `json:"next_scheduled_at,omitempty"`
	LastIndexedSettingsHash string         `json:"last_indexed_settings_hash,omitempty"`
	DeltaCursor             string         `json:"-"`
	HealthStatus            HealthStatus   `json:"health_status"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

// Validate enforces a Connector's two invariants: periodic indexing
// implies indexable, and implies a positive frequency.
func (c *Connector) Validate() error {
	if c.PeriodicIndexingEnabled {
		if !c.IsIndexable {
			return ErrPeriodicRequiresIndexable
		}
		if c.IndexingFrequencyMins <= 0 {
			return ErrPeriodicRequiresFrequency
		}
	}
	return nil
}
