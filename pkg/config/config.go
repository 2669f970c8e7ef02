package config

// Config is the umbrella configuration object that encapsulates all
// registries, defaults, and resolved system settings. This is the object
// returned by Initialize() and threaded through cmd/quarry's wiring.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// System-wide defaults
	Defaults *Defaults

	// Component registries
	LLMProviderRegistry *LLMProviderRegistry

	Queue     *QueueConfig
	Retention *RetentionConfig
	Store     *StoreConfig
	Vector    *VectorConfig
}

// Initialize is defined in loader.go

// ConfigStats contains statistics about loaded configuration
type ConfigStats struct {
	LLMProviders int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		LLMProviders: c.LLMProviderRegistry.Len(),
	}
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetLLMProvider retrieves an LLM provider configuration by name.
// This is a convenience method that wraps LLMProviderRegistry.Get().
func (c *Config) GetLLMProvider(name string) (*LLMProviderConfig, error) {
	return c.LLMProviderRegistry.Get(name)
}
