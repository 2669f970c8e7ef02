package models

// LLMConfig is a per-search-space handle selecting a provider, model, and
// credentials. A SearchSpace's three named slots (long-context, fast,
// strategic) each reference one LLMConfig by id.
type LLMConfig struct {
	ID           int64          `json:"id"`
	Provider     string         `json:"provider"` // "openai" or "anthropic"
	Model        string         `json:"model"`
	APIKeyEnc    []byte         `json:"-"`                  // AES-256-GCM ciphertext, see pkg/secret
	BaseURL      string         `json:"api_base,omitempty"` // optional custom endpoint
	Language     string         `json:"language,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
}
