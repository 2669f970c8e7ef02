package llmclient

import "errors"

// errUnsupportedEmbedding is returned by providers with no embeddings
// endpoint (Anthropic); a SearchSpace must configure a provider with an
// embedding_model for its embedding slot independently of its chat slots.
var errUnsupportedEmbedding = errors.New("llmclient: provider does not support embeddings")
