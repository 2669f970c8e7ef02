package config

import (
	"fmt"
	"os"
)

// Validator validates configuration comprehensively with clear error messages
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *Validator) ValidateAll() error {
	if err := v.validateQueue(); err != nil {
		return fmt.Errorf("queue validation failed: %w", err)
	}

	if err := v.validateRetention(); err != nil {
		return fmt.Errorf("retention validation failed: %w", err)
	}

	if err := v.validateStore(); err != nil {
		return fmt.Errorf("store validation failed: %w", err)
	}

	if err := v.validateVector(); err != nil {
		return fmt.Errorf("vector validation failed: %w", err)
	}

	if err := v.validateLLMProviders(); err != nil {
		return fmt.Errorf("LLM provider validation failed: %w", err)
	}

	if err := v.validateDefaults(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}

	return nil
}

func (v *Validator) validateQueue() error {
	q := v.cfg.Queue
	if q == nil {
		return fmt.Errorf("queue configuration is nil")
	}

	if q.WorkerCount < 1 || q.WorkerCount > 50 {
		return fmt.Errorf("worker_count must be between 1 and 50, got %d", q.WorkerCount)
	}
	if q.MaxConcurrentRuns < 1 {
		return fmt.Errorf("max_concurrent_runs must be at least 1, got %d", q.MaxConcurrentRuns)
	}
	if q.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", q.PollInterval)
	}
	if q.PollIntervalJitter < 0 {
		return fmt.Errorf("poll_interval_jitter must be non-negative, got %v", q.PollIntervalJitter)
	}
	if q.PollIntervalJitter >= q.PollInterval {
		return fmt.Errorf("poll_interval_jitter must be less than poll_interval, got jitter=%v interval=%v", q.PollIntervalJitter, q.PollInterval)
	}
	if q.RunTimeout <= 0 {
		return fmt.Errorf("run_timeout must be positive, got %v", q.RunTimeout)
	}
	if q.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive, got %v", q.GracefulShutdownTimeout)
	}
	if q.OrphanDetectionInterval <= 0 {
		return fmt.Errorf("orphan_detection_interval must be positive, got %v", q.OrphanDetectionInterval)
	}
	if q.OrphanThreshold <= 0 {
		return fmt.Errorf("orphan_threshold must be positive, got %v", q.OrphanThreshold)
	}

	return nil
}

func (v *Validator) validateRetention() error {
	r := v.cfg.Retention
	if r == nil {
		return fmt.Errorf("retention configuration is nil")
	}

	if r.TaskLogRetentionDays < 1 {
		return fmt.Errorf("task_log_retention_days must be at least 1, got %d", r.TaskLogRetentionDays)
	}
	if r.HeartbeatEventTTL <= 0 {
		return fmt.Errorf("heartbeat_event_ttl must be positive, got %v", r.HeartbeatEventTTL)
	}
	if r.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup_interval must be positive, got %v", r.CleanupInterval)
	}

	return nil
}

func (v *Validator) validateStore() error {
	s := v.cfg.Store
	if s == nil {
		return fmt.Errorf("store configuration is nil")
	}

	if s.DSN == "" {
		return NewValidationError("store", "", "dsn", fmt.Errorf("required"))
	}
	if s.MaxConns < 1 {
		return NewValidationError("store", "", "max_conns", fmt.Errorf("must be at least 1"))
	}
	if s.BatchFlushEvery < 1 {
		return NewValidationError("store", "", "batch_flush_every", fmt.Errorf("must be at least 1"))
	}

	return nil
}

func (v *Validator) validateVector() error {
	vc := v.cfg.Vector
	if vc == nil {
		return fmt.Errorf("vector configuration is nil")
	}

	if vc.Endpoint == "" {
		return NewValidationError("vector", "", "endpoint", fmt.Errorf("required"))
	}
	if vc.CollectionName == "" {
		return NewValidationError("vector", "", "collection_name", fmt.Errorf("required"))
	}
	if vc.VectorSize < 1 {
		return NewValidationError("vector", "", "vector_size", fmt.Errorf("must be at least 1"))
	}
	if vc.APIKeyEnv != "" {
		if value := os.Getenv(vc.APIKeyEnv); value == "" {
			return NewValidationError("vector", "", "api_key_env", fmt.Errorf("environment variable %s is not set", vc.APIKeyEnv))
		}
	}

	return nil
}

func (v *Validator) validateLLMProviders() error {
	for name, provider := range v.cfg.LLMProviderRegistry.GetAll() {
		if !provider.Type.IsValid() {
			return NewValidationError("llm_provider", name, "type", fmt.Errorf("invalid provider type: %s", provider.Type))
		}

		if provider.Model == "" {
			return NewValidationError("llm_provider", name, "model", fmt.Errorf("model required"))
		}

		if provider.APIKeyEnv != "" {
			if value := os.Getenv(provider.APIKeyEnv); value == "" {
				return NewValidationError("llm_provider", name, "api_key_env", fmt.Errorf("environment variable %s is not set", provider.APIKeyEnv))
			}
		}

		if provider.MaxContextTokens < 1000 {
			return NewValidationError("llm_provider", name, "max_context_tokens", fmt.Errorf("must be at least 1000"))
		}
	}

	return nil
}

func (v *Validator) validateDefaults() error {
	defaults := v.cfg.Defaults
	if defaults == nil {
		return nil
	}

	if defaults.LLMProvider != "" && !v.cfg.LLMProviderRegistry.Has(defaults.LLMProvider) {
		return NewValidationError("defaults", "", "llm_provider",
			fmt.Errorf("LLM provider '%s' not found", defaults.LLMProvider))
	}

	switch defaults.ResearchMode {
	case "", "QNA", "GENERAL", "DEEP", "DEEPER":
	default:
		return NewValidationError("defaults", "", "research_mode",
			fmt.Errorf("invalid research mode: %s", defaults.ResearchMode))
	}

	switch defaults.SearchMode {
	case "", "CHUNKS", "DOCUMENTS":
	default:
		return NewValidationError("defaults", "", "search_mode",
			fmt.Errorf("invalid search mode: %s", defaults.SearchMode))
	}

	return nil
}
