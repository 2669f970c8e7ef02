package connector

import (
	"context"

	"github.com/quarryhq/quarry/pkg/models"
)

// stubTypes are the connector types whose wire protocols are out of
// scope: each still gets a StubAdapter so the registry, factory table,
// and the ingestion pipeline's capability probing exercise every
// models.ConnectorType end to end.
var stubTypes = []models.ConnectorType{
	models.ConnectorTypeGitHub,
	models.ConnectorTypeLinear,
	models.ConnectorTypeConfluence,
	models.ConnectorTypeBookStack,
	models.ConnectorTypeClickUp,
	models.ConnectorTypeAirtable,
	models.ConnectorTypeLuma,
	models.ConnectorTypeGoogleCalendar,
	models.ConnectorTypeGmail,
	models.ConnectorTypeDiscord,
	models.ConnectorTypeTeams,
	models.ConnectorTypeObsidian,
	models.ConnectorTypeHomeAssistant,
	models.ConnectorTypeJellyfin,
}

// StubAdapter implements only Validator (always succeeds) and
// MarkdownFormatter (pass-through) — enough to exercise the registry and
// the pipeline's capability probing without a real wire protocol.
type StubAdapter struct {
	connectorType models.ConnectorType
}

func NewStubAdapter(t models.ConnectorType) *StubAdapter {
	return &StubAdapter{connectorType: t}
}

func (a *StubAdapter) Type() models.ConnectorType { return a.connectorType }

func (a *StubAdapter) Validate(_ context.Context, _ map[string]any) error {
	return nil
}

func (a *StubAdapter) FormatMarkdown(raw string) (string, error) {
	return raw, nil
}
