package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// settingsHash is a SHA-256 over the canonical JSON encoding of a
// connector's user-visible configuration subset (selected folders,
// subfolder-inclusion flag, channel lists, and the like) — NOT credentials,
// which change independently of what gets synced. encoding/json sorts map
// keys alphabetically, which is what makes this canonical across calls.
func settingsHash(userVisibleConfig map[string]any) (string, error) {
	canonical, err := json.Marshal(userVisibleConfig)
	if err != nil {
		return "", fmt.Errorf("indexer: marshal settings for hash: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// userVisibleConfig strips credential-shaped keys from a connector's Config
// map before hashing, so a token refresh never changes the settings hash
// and spuriously forces a full resync. The exclusion list matches the
// keys pkg/connector's adapters read credentials from.
func userVisibleConfig(config map[string]any) map[string]any {
	excluded := map[string]struct{}{
		"api_key": {}, "access_token": {}, "refresh_token": {},
		"client_secret": {}, "password": {}, "token": {}, "credentials": {},
	}
	out := make(map[string]any, len(config))
	for k, v := range config {
		if _, skip := excluded[k]; skip {
			continue
		}
		out[k] = v
	}
	return out
}
