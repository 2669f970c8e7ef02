package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// QuarryYAMLConfig represents the complete quarry.yaml file structure.
type QuarryYAMLConfig struct {
	Defaults  *Defaults        `yaml:"defaults"`
	Queue     *QueueConfig     `yaml:"queue"`
	Retention *RetentionConfig `yaml:"retention"`
	Store     *StoreYAMLConfig `yaml:"store"`
	Vector    *VectorConfig    `yaml:"vector"`
}

// StoreYAMLConfig mirrors StoreConfig but lets BatchFlushEvery/MaxConns be
// omitted so defaults apply.
type StoreYAMLConfig struct {
	DSN             string `yaml:"dsn"`
	MaxConns        int32  `yaml:"max_conns,omitempty"`
	MigrationsPath  string `yaml:"migrations_path,omitempty"`
	BatchFlushEvery int    `yaml:"batch_flush_every,omitempty"`
}

// LLMProvidersYAMLConfig represents the complete llm-providers.yaml file structure
type LLMProvidersYAMLConfig struct {
	LLMProviders map[string]LLMProviderConfig `yaml:"llm_providers"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined LLM providers
//  5. Resolve queue/retention/store/vector settings, applying defaults
//  6. Build in-memory registries
//  7. Validate all configuration
//  8. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"llm_providers", stats.LLMProviders)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	// 1. Load quarry.yaml (contains defaults, queue, retention, store, vector)
	quarryConfig, err := loader.loadQuarryYAML()
	if err != nil {
		return nil, NewLoadError("quarry.yaml", err)
	}

	// 2. Load llm-providers.yaml
	llmProviders, err := loader.loadLLMProvidersYAML()
	if err != nil {
		return nil, NewLoadError("llm-providers.yaml", err)
	}

	// 3. Get built-in configuration
	builtin := GetBuiltinConfig()

	// 4. Merge built-in + user-defined providers (user overrides built-in)
	llmProvidersMerged := mergeLLMProviders(builtin.LLMProviders, llmProviders)
	llmProviderRegistry := NewLLMProviderRegistry(llmProvidersMerged)

	// 5. Resolve defaults
	defaults := quarryConfig.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}
	if defaults.LLMProvider == "" {
		defaults.LLMProvider = "openai-default"
	}
	if defaults.ResearchMode == "" {
		defaults.ResearchMode = "QNA"
	}
	if defaults.SearchMode == "" {
		defaults.SearchMode = "CHUNKS"
	}

	// 6. Resolve queue config (merge user YAML with built-in defaults)
	queueConfig := DefaultQueueConfig()
	if quarryConfig.Queue != nil {
		if err := mergo.Merge(queueConfig, quarryConfig.Queue, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge queue config: %w", err)
		}
	}

	// 7. Resolve retention config
	retentionConfig := DefaultRetentionConfig()
	if quarryConfig.Retention != nil {
		if err := mergo.Merge(retentionConfig, quarryConfig.Retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
	}

	// 8. Resolve store config
	storeConfig := resolveStoreConfig(quarryConfig.Store)

	// 9. Resolve vector config
	vectorConfig := resolveVectorConfig(quarryConfig.Vector)

	return &Config{
		configDir:           configDir,
		Defaults:            defaults,
		Queue:               queueConfig,
		Retention:           retentionConfig,
		Store:               storeConfig,
		Vector:              vectorConfig,
		LLMProviderRegistry: llmProviderRegistry,
	}, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	v := NewValidator(cfg)
	return v.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using shell-style $VAR / ${VAR} syntax.
	// Note: ExpandEnv passes through original data on parse/execution errors,
	// allowing the YAML parser to handle the content (or fail with a
	// clearer error message).
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadQuarryYAML() (*QuarryYAMLConfig, error) {
	var cfg QuarryYAMLConfig

	if err := l.loadYAML("quarry.yaml", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (l *configLoader) loadLLMProvidersYAML() (map[string]LLMProviderConfig, error) {
	var cfg LLMProvidersYAMLConfig

	cfg.LLMProviders = make(map[string]LLMProviderConfig)

	if err := l.loadYAML("llm-providers.yaml", &cfg); err != nil {
		return nil, err
	}

	return cfg.LLMProviders, nil
}

// resolveStoreConfig resolves Postgres store configuration from YAML, applying defaults.
func resolveStoreConfig(y *StoreYAMLConfig) *StoreConfig {
	cfg := &StoreConfig{
		MaxConns:        10,
		MigrationsPath:  "migrations",
		BatchFlushEvery: 10,
	}

	if y == nil {
		return cfg
	}

	if y.DSN != "" {
		cfg.DSN = y.DSN
	}
	if y.MaxConns > 0 {
		cfg.MaxConns = y.MaxConns
	}
	if y.MigrationsPath != "" {
		cfg.MigrationsPath = y.MigrationsPath
	}
	if y.BatchFlushEvery > 0 {
		cfg.BatchFlushEvery = y.BatchFlushEvery
	}

	return cfg
}

// resolveVectorConfig resolves Qdrant vector-store configuration from YAML, applying defaults.
func resolveVectorConfig(y *VectorConfig) *VectorConfig {
	cfg := &VectorConfig{
		Endpoint:       "localhost:6334",
		CollectionName: "quarry_embeddings",
		VectorSize:     3072,
	}

	if y == nil {
		return cfg
	}

	if y.Endpoint != "" {
		cfg.Endpoint = y.Endpoint
	}
	if y.APIKeyEnv != "" {
		cfg.APIKeyEnv = y.APIKeyEnv
	}
	if y.CollectionName != "" {
		cfg.CollectionName = y.CollectionName
	}
	if y.VectorSize > 0 {
		cfg.VectorSize = y.VectorSize
	}

	return cfg
}
