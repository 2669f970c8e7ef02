package config

// Defaults contains system-wide default configurations applied when a
// Search Space does not override them.
type Defaults struct {
	// LLMProvider is the provider name used to resolve a Search Space's
	// long-context/fast/strategic slots when the space doesn't pin one.
	LLMProvider string `yaml:"llm_provider,omitempty"`

	// ResearchMode is the default research mode for new chat threads
	// (QNA, GENERAL, DEEP, DEEPER) when the request omits one.
	ResearchMode string `yaml:"research_mode,omitempty"`

	// SearchMode is the default retrieval granularity (CHUNKS or DOCUMENTS)
	// for new chat threads.
	SearchMode string `yaml:"search_mode,omitempty"`

	// CitationsEnabled is the default citations-enabled value for newly
	// created Search Spaces.
	CitationsEnabled bool `yaml:"citations_enabled"`
}
