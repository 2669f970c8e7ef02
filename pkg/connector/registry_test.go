package connector

import (
	"testing"

	"github.com/quarryhq/quarry/pkg/models"
)

func TestDefaultRegistryBuildsFullAdapterForSlack(t *testing.T) {
	r := DefaultRegistry()
	adapter, err := r.Build(models.ConnectorTypeSlack, map[string]any{"access_token": "xoxb-test", "channel": "C123"})
	if err != nil {
		t.Fatalf("expected slack adapter to build, got %v", err)
	}
	if adapter.Type() != models.ConnectorTypeSlack {
		t.Fatalf("expected slack type, got %v", adapter.Type())
	}
	if _, ok := adapter.(DeltaLister); !ok {
		t.Fatal("expected slack adapter to implement DeltaLister")
	}
}

func TestDefaultRegistryBuildsStubAdapterForUnimplementedTypes(t *testing.T) {
	r := DefaultRegistry()
	adapter, err := r.Build(models.ConnectorTypeGitHub, map[string]any{})
	if err != nil {
		t.Fatalf("expected stub adapter to build without error, got %v", err)
	}
	if _, ok := adapter.(*StubAdapter); !ok {
		t.Fatalf("expected *StubAdapter for github, got %T", adapter)
	}
	if _, ok := adapter.(DeltaLister); ok {
		t.Fatal("expected stub adapter to NOT implement DeltaLister")
	}
	if _, ok := adapter.(Validator); !ok {
		t.Fatal("expected stub adapter to implement Validator")
	}
}

func TestDefaultRegistryCoversEveryConnectorType(t *testing.T) {
	r := DefaultRegistry()
	all := []models.ConnectorType{
		models.ConnectorTypeSlack, models.ConnectorTypeNotion, models.ConnectorTypeGitHub,
		models.ConnectorTypeLinear, models.ConnectorTypeJira, models.ConnectorTypeConfluence,
		models.ConnectorTypeBookStack, models.ConnectorTypeClickUp, models.ConnectorTypeAirtable,
		models.ConnectorTypeLuma, models.ConnectorTypeGoogleCalendar, models.ConnectorTypeGmail,
		models.ConnectorTypeGoogleDrive, models.ConnectorTypeDiscord, models.ConnectorTypeTeams,
		models.ConnectorTypeElasticsearch, models.ConnectorTypeWebcrawler, models.ConnectorTypeObsidian,
		models.ConnectorTypeJellyfin, models.ConnectorTypeHomeAssistant, models.ConnectorTypeRSS,
	}
	for _, ct := range all {
		if !r.Has(ct) {
			t.Fatalf("expected registry to have a factory for %q", ct)
		}
	}
}

func TestRegistryBuildFailsForUnknownType(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Build(models.ConnectorType("does_not_exist"), nil); err == nil {
		t.Fatal("expected error building an unregistered connector type")
	}
}
