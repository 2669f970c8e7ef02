package config

import "sync"

// BuiltinConfig holds built-in configuration data — the LLM provider
// presets available out of the box before any user YAML is merged in.
type BuiltinConfig struct {
	LLMProviders map[string]LLMProviderConfig
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration (thread-safe, lazy-initialized).
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		LLMProviders: initBuiltinLLMProviders(),
	}
}

func initBuiltinLLMProviders() map[string]LLMProviderConfig {
	return map[string]LLMProviderConfig{
		"openai-default": {
			Type:             LLMProviderTypeOpenAI,
			Model:            "gpt-5",
			EmbeddingModel:   "text-embedding-3-large",
			APIKeyEnv:        "OPENAI_API_KEY",
			MaxContextTokens: 250000, // Conservative for 272K context
		},
		"anthropic-default": {
			Type:             LLMProviderTypeAnthropic,
			Model:            "claude-sonnet-4-20250514",
			APIKeyEnv:        "ANTHROPIC_API_KEY",
			MaxContextTokens: 150000, // Conservative for 200K context
		},
	}
}
