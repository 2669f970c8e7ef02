package config

// LLMProviderType defines supported LLM providers. Quarry keeps only the
// providers backed by a real SDK (openai-go/v3, anthropic-sdk-go) — see
// DESIGN.md for why other providers are not carried forward.
type LLMProviderType string

const (
	// LLMProviderTypeOpenAI is the OpenAI API (chat + embeddings).
	LLMProviderTypeOpenAI LLMProviderType = "openai"
	// LLMProviderTypeAnthropic is the Anthropic Claude API.
	LLMProviderTypeAnthropic LLMProviderType = "anthropic"
)

// IsValid checks if the LLM provider type is valid.
func (t LLMProviderType) IsValid() bool {
	switch t {
	case LLMProviderTypeOpenAI, LLMProviderTypeAnthropic:
		return true
	default:
		return false
	}
}

// LLMProviderRole identifies which of a Search Space's three LLM config
// slots a provider fills.
type LLMProviderRole string

const (
	// LLMProviderRoleLongContext backs research modes that need a large
	// context window (DEEP/DEEPER outline + section drafting).
	LLMProviderRoleLongContext LLMProviderRole = "long_context"
	// LLMProviderRoleFast backs latency-sensitive steps (reformulation,
	// follow-up suggestion).
	LLMProviderRoleFast LLMProviderRole = "fast"
	// LLMProviderRoleStrategic backs the final answer-composition step.
	LLMProviderRoleStrategic LLMProviderRole = "strategic"
)

// IsValid checks if the LLM provider role is valid.
func (r LLMProviderRole) IsValid() bool {
	switch r {
	case LLMProviderRoleLongContext, LLMProviderRoleFast, LLMProviderRoleStrategic:
		return true
	default:
		return false
	}
}
