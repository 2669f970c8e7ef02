package connector

import (
	"fmt"
	"sync"

	"github.com/quarryhq/quarry/pkg/models"
)

// Factory builds an Adapter for one configured Connector instance. config
// is the connector row's Config map (credentials, scopes, folders, ...).
type Factory func(config map[string]any) (Adapter, error)

// Registry binds a models.ConnectorType to the Factory that builds its
// adapter, held behind an RWMutex with defensive copies on construction and
// read, the same shape as config.ChainRegistry.
type Registry struct {
	mu        sync.RWMutex
	factories map[models.ConnectorType]Factory
}

// NewRegistry builds a Registry from the given factories. Adding a
// connector type to the system is adding a models.ConnectorType constant
// plus an entry here.
func NewRegistry(factories map[models.ConnectorType]Factory) *Registry {
	copied := make(map[models.ConnectorType]Factory, len(factories))
	for k, v := range factories {
		copied[k] = v
	}
	return &Registry{factories: copied}
}

// Build constructs the adapter for the given connector type and config.
func (r *Registry) Build(connectorType models.ConnectorType, config map[string]any) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[connectorType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("connector: no adapter registered for type %q", connectorType)
	}
	return factory(config)
}

// Has reports whether connectorType has a registered factory.
func (r *Registry) Has(connectorType models.ConnectorType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[connectorType]
	return ok
}

// DefaultRegistry returns the production registry: full adapters for the
// fully implemented connector types, documented stubs for the rest (see
// stubs.go and DESIGN.md).
func DefaultRegistry() *Registry {
	factories := map[models.ConnectorType]Factory{
		models.ConnectorTypeSlack: func(cfg map[string]any) (Adapter, error) {
			return NewSlackAdapter(cfg)
		},
		models.ConnectorTypeNotion: func(cfg map[string]any) (Adapter, error) {
			return NewNotionAdapter(cfg)
		},
		models.ConnectorTypeWebcrawler: func(cfg map[string]any) (Adapter, error) {
			return NewWebcrawlerAdapter(cfg)
		},
		models.ConnectorTypeGoogleDrive: func(cfg map[string]any) (Adapter, error) {
			return NewGoogleDriveAdapter(cfg)
		},
		models.ConnectorTypeJira: func(cfg map[string]any) (Adapter, error) {
			return NewJiraAdapter(cfg)
		},
		models.ConnectorTypeRSS: func(cfg map[string]any) (Adapter, error) {
			return NewRSSAdapter(cfg)
		},
		models.ConnectorTypeElasticsearch: func(cfg map[string]any) (Adapter, error) {
			return NewElasticsearchAdapter(cfg)
		},
	}
	for _, t := range stubTypes {
		t := t
		factories[t] = func(cfg map[string]any) (Adapter, error) {
			return NewStubAdapter(t), nil
		}
	}
	return NewRegistry(factories)
}
